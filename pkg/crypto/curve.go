package crypto

import (
	"errors"
	"math/big"
)

// secp256k1 domain parameters: y² = x³ + 7 over F_p.
const (
	hexP  = "fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f"
	hexN  = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
	hexGx = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	hexGy = "483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
)

// Parsed once, never mutated. Callers receive copies.
var (
	curveP     = mustHex(hexP)
	curveN     = mustHex(hexN)
	curveHalfN = new(big.Int).Rsh(curveN, 1)
	curveB     = big.NewInt(7)
	generator  = Point{x: mustHex(hexGx), y: mustHex(hexGy)}

	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
	bigThree = big.NewInt(3)
)

var ErrNotInvertible = errors.New("value has no modular inverse")

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("invalid curve constant " + s)
	}
	return v
}

// FieldPrime returns a copy of the field prime P.
func FieldPrime() *big.Int { return new(big.Int).Set(curveP) }

// CurveOrder returns a copy of the group order N.
func CurveOrder() *big.Int { return new(big.Int).Set(curveN) }

// Point is an affine secp256k1 point. The zero value is the point at
// infinity. Points are immutable: operations always return new values.
type Point struct {
	x, y *big.Int
}

// Infinity is the group identity.
var Infinity = Point{}

// Generator returns the base point G.
func Generator() Point { return generator }

// NewPoint returns the point (x, y). It does not check the curve equation.
func NewPoint(x, y *big.Int) Point {
	return Point{x: new(big.Int).Set(x), y: new(big.Int).Set(y)}
}

// IsInfinity reports whether p is the identity.
func (p Point) IsInfinity() bool { return p.x == nil }

// X returns a copy of the x coordinate, or nil at infinity.
func (p Point) X() *big.Int {
	if p.IsInfinity() {
		return nil
	}
	return new(big.Int).Set(p.x)
}

// Y returns a copy of the y coordinate, or nil at infinity.
func (p Point) Y() *big.Int {
	if p.IsInfinity() {
		return nil
	}
	return new(big.Int).Set(p.y)
}

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool {
	if p.IsInfinity() || q.IsInfinity() {
		return p.IsInfinity() == q.IsInfinity()
	}
	return p.x.Cmp(q.x) == 0 && p.y.Cmp(q.y) == 0
}

// IsOnCurve reports whether y² ≡ x³ + 7 (mod P). The identity is on the curve.
func IsOnCurve(p Point) bool {
	if p.IsInfinity() {
		return true
	}

	lhs := new(big.Int).Mul(p.y, p.y)
	lhs.Mod(lhs, curveP)

	rhs := new(big.Int).Mul(p.x, p.x)
	rhs.Mul(rhs, p.x)
	rhs.Add(rhs, curveB)
	rhs.Mod(rhs, curveP)

	return lhs.Cmp(rhs) == 0
}

// ModInverse returns a⁻¹ mod m using the extended Euclidean algorithm.
func ModInverse(a, m *big.Int) (*big.Int, error) {
	r0 := new(big.Int).Mod(a, m)
	if r0.Sign() == 0 {
		return nil, ErrNotInvertible
	}

	r1 := new(big.Int).Set(m)
	s0, s1 := big.NewInt(1), big.NewInt(0)
	q, tmp := new(big.Int), new(big.Int)

	for r1.Sign() != 0 {
		q.Quo(r0, r1)

		tmp.Mul(q, r1)
		r0, r1 = r1, new(big.Int).Sub(r0, tmp)

		tmp.Mul(q, s1)
		s0, s1 = s1, new(big.Int).Sub(s0, tmp)
	}

	if r0.Cmp(bigOne) != 0 {
		return nil, ErrNotInvertible
	}

	return s0.Mod(s0, m), nil
}

// Add returns p + q.
func Add(p, q Point) Point {
	switch {
	case p.IsInfinity():
		return q
	case q.IsInfinity():
		return p
	}

	if p.x.Cmp(q.x) == 0 {
		if p.y.Cmp(q.y) == 0 {
			return Double(p)
		}
		// Same x, differing y: q = -p.
		return Infinity
	}

	num := new(big.Int).Sub(q.y, p.y)
	den := new(big.Int).Sub(q.x, p.x)
	inv, err := ModInverse(den, curveP)
	if err != nil {
		return Infinity
	}

	lambda := num.Mul(num, inv)
	lambda.Mod(lambda, curveP)

	return chord(lambda, p, q.x)
}

// Double returns 2p.
func Double(p Point) Point {
	if p.IsInfinity() || p.y.Sign() == 0 {
		return Infinity
	}

	num := new(big.Int).Mul(p.x, p.x)
	num.Mul(num, bigThree)
	den := new(big.Int).Mul(p.y, bigTwo)
	inv, err := ModInverse(den, curveP)
	if err != nil {
		return Infinity
	}

	lambda := num.Mul(num, inv)
	lambda.Mod(lambda, curveP)

	return chord(lambda, p, p.x)
}

// chord completes an addition given the slope through p and a point with
// x coordinate qx.
func chord(lambda *big.Int, p Point, qx *big.Int) Point {
	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p.x)
	x3.Sub(x3, qx)
	x3.Mod(x3, curveP)

	y3 := new(big.Int).Sub(p.x, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p.y)
	y3.Mod(y3, curveP)

	return Point{x: x3, y: y3}
}

// ScalarMult returns k·p using double-and-add over the bits of k.
func ScalarMult(k *big.Int, p Point) Point {
	scalar := new(big.Int).Mod(k, curveN)

	result := Infinity
	for i := scalar.BitLen() - 1; i >= 0; i-- {
		result = Double(result)
		if scalar.Bit(i) == 1 {
			result = Add(result, p)
		}
	}

	return result
}

// ScalarBaseMult returns k·G.
func ScalarBaseMult(k *big.Int) Point {
	return ScalarMult(k, generator)
}
