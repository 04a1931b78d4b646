package postgres

import (
	"fmt"
	"math/big"
)

// bigText converts an optional big integer to a driver argument. NUMERIC
// columns round-trip through their text form so arbitrary 256-bit amounts
// survive without float loss.
func bigText(n *big.Int) any {
	if n == nil {
		return nil
	}
	return n.String()
}

// parseBig converts a scanned optional text NUMERIC back to a big integer.
func parseBig(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: malformed numeric %q", *s)
	}
	return n, nil
}
