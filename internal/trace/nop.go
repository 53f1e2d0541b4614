package trace

type nopTracer struct{}

func (nopTracer) Emit(Event)    {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop returns the silent tracer.
func Nop() Tracer { return nopTracer{} }
