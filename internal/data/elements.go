package data

import (
	"fmt"
	"sync"
)

// symbols maps atomic numbers to element symbols; index 0 is the
// placeholder species.
var symbols = [...]string{
	"X",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
	"In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba",
	"La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb", "Lu",
	"Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
	"Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra",
	"Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm", "Md", "No", "Lr",
	"Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds", "Rg", "Cn",
	"Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}

var numberForSymbol = sync.OnceValue(func() map[string]int64 {
	m := make(map[string]int64, len(symbols))
	for z, s := range symbols {
		m[s] = int64(z)
	}
	return m
})

// SymbolForNumber returns the element symbol for an atomic number.
func SymbolForNumber(z int64) (string, error) {
	if z < 1 || int(z) >= len(symbols) {
		return "", fmt.Errorf("no element with atomic number %d", z)
	}
	return symbols[z], nil
}

// NumberForSymbol returns the atomic number of an element symbol.
func NumberForSymbol(symbol string) (int64, error) {
	z, ok := numberForSymbol()[symbol]
	if !ok || z == 0 {
		return 0, fmt.Errorf("unknown element symbol %q", symbol)
	}
	return z, nil
}
