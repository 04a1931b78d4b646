package redis

import (
	"fmt"
	"math/big"
)

func bigPtr(n *big.Int) *string {
	if n == nil {
		return nil
	}
	s := n.String()
	return &s
}

func parseBigStr(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("redis: malformed numeric %q", *s)
	}
	return n, nil
}
