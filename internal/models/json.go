package models

import (
	"math"
	"strconv"
)

// JSONFloat serializes like a float64 except that NaN becomes null.
// encoding/json rejects NaN outright, and "no data" means are NaN by
// contract, so every derived view that can be empty encodes through
// this type.
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}
