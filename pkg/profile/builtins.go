package profile

import (
	"fmt"
	"math"

	zygo "github.com/glycerine/zygomys/zygo"
)

// preprocessSource adapts profile scripts to zygomys syntax:
//
//  1. ; line comments become // comments.
//  2. Kebab-case identifiers become underscores: tan-deg -> tan_deg.
//     A hyphen only converts between identifier characters, so (- a b)
//     still subtracts.
//
// String literals are copied unchanged.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/8)
	b := []byte(source)
	i := 0
	for i < len(b) {
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// numbers converts every argument, failing on the first non-number.
func numbers(fn string, args []zygo.Sexp, want int) ([]float64, error) {
	if len(args) != want {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", fn, want, len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", fn, i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// numeric registers a fixed-arity float function under name.
func numeric(env *zygo.Zlisp, name string, arity int, fn func(x []float64) float64) {
	env.AddFunction(name, func(env *zygo.Zlisp, n string, args []zygo.Sexp) (zygo.Sexp, error) {
		x, err := numbers(name, args, arity)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpFloat{Val: fn(x)}, nil
	})
}

// registerBuiltins installs the profile math helpers into a zygomys
// environment. Source must be preprocessed so that tan-deg reaches the
// environment as tan_deg.
func registerBuiltins(env *zygo.Zlisp) {
	// (tan-deg 10)
	numeric(env, "tan_deg", 1, func(x []float64) float64 { return math.Tan(x[0] * math.Pi / 180) })
	// (sqrt 2)
	numeric(env, "sqrt", 1, func(x []float64) float64 { return math.Sqrt(x[0]) })
	// (fmin a b), (fmax a b)
	numeric(env, "fmin", 2, func(x []float64) float64 { return math.Min(x[0], x[1]) })
	numeric(env, "fmax", 2, func(x []float64) float64 { return math.Max(x[0], x[1]) })
	// (clamp v lo hi)
	numeric(env, "clamp", 3, func(x []float64) float64 { return math.Max(x[1], math.Min(x[2], x[0])) })
}
