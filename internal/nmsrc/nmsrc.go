// Package nmsrc hands out names that are unique within one source.
package nmsrc

import "strconv"

type Src struct {
	m map[string]int
}

func New() Src {
	return Src{
		m: make(map[string]int),
	}
}

func (s Src) next(prefix string) int {
	i := s.m[prefix] + 1
	s.m[prefix] = i
	return i
}

// Name is prefix followed by its use count: one1, one2.
func (s Src) Name(prefix string) string {
	return prefix + strconv.Itoa(s.next(prefix))
}

// Label is an assembler-local label, L_prefix_N. It shares the use
// count of Name.
func (s Src) Label(prefix string) string {
	return "L_" + prefix + "_" + strconv.Itoa(s.next(prefix))
}
