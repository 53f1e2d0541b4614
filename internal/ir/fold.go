package ir

import (
	"errors"
	"math"
)

// Folding failures are local conditions: the constructor catches them and
// builds the unfolded primop instead. They never escape the ir package.
var (
	errIntOverflow   = errors.New("ir: integer overflow")
	errDivByZero     = errors.New("ir: division by zero")
	errShiftOverflow = errors.New("ir: shift out of range")
)

func sext(k PrimKind, bits uint64) int64 {
	width := k.Bits()
	if width < 64 && bits&(1<<(width-1)) != 0 {
		bits |= ^uint64(0) << width
	}
	return int64(bits)
}

func signedRange(width int) (int64, int64) {
	if width >= 64 {
		return math.MinInt64, math.MaxInt64
	}
	max := int64(1)<<(width-1) - 1
	return -max - 1, max
}

func checkedAdd(a, b int64, width int) (int64, error) {
	min, max := signedRange(width)
	if width < 64 {
		r := a + b
		if r < min || r > max {
			return 0, errIntOverflow
		}
		return r, nil
	}
	if (b > 0 && a > max-b) || (b < 0 && a < min-b) {
		return 0, errIntOverflow
	}
	return a + b, nil
}

func checkedSub(a, b int64, width int) (int64, error) {
	if b == math.MinInt64 {
		if a >= 0 {
			return 0, errIntOverflow
		}
		return checkedAdd(a+1, math.MaxInt64, width)
	}
	return checkedAdd(a, -b, width)
}

func checkedMul(a, b int64, width int) (int64, error) {
	min, max := signedRange(width)
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a == -1 && b == min || b == -1 && a == min {
		return 0, errIntOverflow
	}
	r := a * b
	if r/b != a || r < min || r > max {
		return 0, errIntOverflow
	}
	return r, nil
}

func checkedDiv(a, b int64, width int) (int64, error) {
	min, _ := signedRange(width)
	if b == 0 {
		return 0, errDivByZero
	}
	if a == min && b == -1 {
		return 0, errIntOverflow
	}
	return a / b, nil
}

func checkedRem(a, b int64, width int) (int64, error) {
	min, _ := signedRange(width)
	if b == 0 {
		return 0, errDivByZero
	}
	if a == min && b == -1 {
		return 0, errIntOverflow
	}
	return a % b, nil
}

func foldSigned(tag NodeTag, k PrimKind, ab, bb uint64) (uint64, error) {
	width := k.Bits()
	a, b := sext(k, ab), sext(k, bb)
	var r int64
	var err error
	switch tag {
	case TagAdd:
		r, err = checkedAdd(a, b, width)
	case TagSub:
		r, err = checkedSub(a, b, width)
	case TagMul:
		r, err = checkedMul(a, b, width)
	case TagDiv:
		r, err = checkedDiv(a, b, width)
	case TagRem:
		r, err = checkedRem(a, b, width)
	case TagAnd:
		r = a & b
	case TagOr:
		r = a | b
	case TagXor:
		r = a ^ b
	case TagShl:
		if a < 0 || b < 0 || int(b) >= width {
			return 0, errShiftOverflow
		}
		r = a << uint(b)
		if r>>uint(b) != a {
			return 0, errShiftOverflow
		}
		_, max := signedRange(width)
		if r > max {
			return 0, errShiftOverflow
		}
	case TagShr:
		if b < 0 || int(b) >= width {
			return 0, errShiftOverflow
		}
		r = a >> uint(b)
	default:
		return 0, errIntOverflow
	}
	if err != nil {
		return 0, err
	}
	return maskBits(k, uint64(r)), nil
}

func foldUnsigned(tag NodeTag, k PrimKind, a, b uint64) (uint64, error) {
	width := k.Bits()
	var r uint64
	switch tag {
	case TagAdd:
		r = a + b
	case TagSub:
		r = a - b
	case TagMul:
		r = a * b
	case TagDiv:
		if b == 0 {
			return 0, errDivByZero
		}
		r = a / b
	case TagRem:
		if b == 0 {
			return 0, errDivByZero
		}
		r = a % b
	case TagAnd:
		r = a & b
	case TagOr:
		r = a | b
	case TagXor:
		r = a ^ b
	case TagShl:
		if int(b) >= width {
			return 0, errShiftOverflow
		}
		r = a << uint(b)
	case TagShr:
		if int(b) >= width {
			return 0, errShiftOverflow
		}
		r = a >> uint(b)
	default:
		return 0, errIntOverflow
	}
	return maskBits(k, r), nil
}

func foldFloat(tag NodeTag, k PrimKind, ab, bb uint64) (uint64, error) {
	var a, b float64
	if k == PrimF32 {
		a = float64(math.Float32frombits(uint32(ab)))
		b = float64(math.Float32frombits(uint32(bb)))
	} else {
		a = math.Float64frombits(ab)
		b = math.Float64frombits(bb)
	}
	var r float64
	switch tag {
	case TagAdd:
		r = a + b
	case TagSub:
		r = a - b
	case TagMul:
		r = a * b
	case TagDiv:
		r = a / b
	case TagRem:
		r = math.Mod(a, b)
	default:
		return 0, errIntOverflow
	}
	if k == PrimF32 {
		return uint64(math.Float32bits(float32(r))), nil
	}
	return math.Float64bits(r), nil
}

// foldBin folds a binary operation over two literals. Checked (signed)
// arithmetic reports overflow instead of wrapping; unsigned arithmetic is
// defined modulo 2^N; floats follow IEEE semantics.
func foldBin(tag NodeTag, k PrimKind, a, b uint64) (uint64, error) {
	switch {
	case k == PrimBool:
		switch tag {
		case TagAnd, TagOr, TagXor:
			return foldUnsigned(tag, k, a, b)
		}
		return 0, errIntOverflow
	case k.IsSigned():
		return foldSigned(tag, k, a, b)
	case k.IsUnsigned():
		return foldUnsigned(tag, k, a, b)
	case k.IsFloat():
		switch tag {
		case TagAdd, TagSub, TagMul, TagDiv, TagRem:
			return foldFloat(tag, k, a, b)
		}
		return 0, errIntOverflow
	}
	return 0, errIntOverflow
}

// foldCmp folds a comparison over two literals.
func foldCmp(tag NodeTag, k PrimKind, ab, bb uint64) (bool, error) {
	switch tag {
	case TagCmpEQ:
		return ab == bb, nil
	case TagCmpNE:
		return ab != bb, nil
	}
	switch {
	case k.IsSigned():
		a, b := sext(k, ab), sext(k, bb)
		switch tag {
		case TagCmpLT:
			return a < b, nil
		case TagCmpLE:
			return a <= b, nil
		case TagCmpGT:
			return a > b, nil
		case TagCmpGE:
			return a >= b, nil
		}
	case k.IsUnsigned() || k == PrimBool:
		switch tag {
		case TagCmpLT:
			return ab < bb, nil
		case TagCmpLE:
			return ab <= bb, nil
		case TagCmpGT:
			return ab > bb, nil
		case TagCmpGE:
			return ab >= bb, nil
		}
	case k.IsFloat():
		var a, b float64
		if k == PrimF32 {
			a = float64(math.Float32frombits(uint32(ab)))
			b = float64(math.Float32frombits(uint32(bb)))
		} else {
			a = math.Float64frombits(ab)
			b = math.Float64frombits(bb)
		}
		switch tag {
		case TagCmpLT:
			return a < b, nil
		case TagCmpLE:
			return a <= b, nil
		case TagCmpGT:
			return a > b, nil
		case TagCmpGE:
			return a >= b, nil
		}
	}
	return false, errIntOverflow
}
