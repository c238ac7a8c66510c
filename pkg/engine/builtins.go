package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/mesh"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites script source before passing it to zygomys.
// It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: select-sphere -> select_sphere
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
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
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
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

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a geom.Vec3.
type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keyword values that are themselves keywords (":mode :toggle") stay
// attached to their key. A bare :all is a positional mask, not a key.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok && name != "all" {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// arg returns positional argument i, or keyword key, or nil.
func (a kwArgs) arg(i int, key string) zygo.Sexp {
	if v, ok := a.kw[key]; ok {
		return v
	}
	if i < len(a.positional) {
		return a.positional[i]
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", describe(s))
}

func toInt(s zygo.Sexp) (int64, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected integer, got %s", describe(s))
}

func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected boolean, got %s", describe(s))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_add) and plain strings ("add").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %s", describe(s))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, fmt.Errorf("expected vec3, got %s", describe(s))
}

// toChannel accepts an integer channel index.
func toChannel(s zygo.Sexp) (mesh.Channel, error) {
	n, err := toInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n >= mesh.MaxChannels {
		return 0, fmt.Errorf("channel %d out of range [0,%d)", n, mesh.MaxChannels)
	}
	return mesh.Channel(n), nil
}

// toMask accepts an integer bit mask or the keyword :all.
func toMask(s zygo.Sexp) (mesh.Mask, error) {
	if name, ok := isKW(s); ok {
		if name == "all" {
			return mesh.AllChannels, nil
		}
		return 0, fmt.Errorf("unknown mask keyword :%s", name)
	}
	n, err := toInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("mask %d out of range", n)
	}
	return mesh.Mask(n), nil
}

func describe(s zygo.Sexp) string {
	if s == nil {
		return "nothing"
	}
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

func intSexp(n int64) zygo.Sexp { return &zygo.SexpInt{Val: n} }

func boolSexp(b bool) zygo.Sexp { return &zygo.SexpBool{Val: b} }

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtin is a script function operating on the session's state.
type builtin func(s *mesh.State, a kwArgs, res *EvalResult) (zygo.Sexp, error)

// registerBuiltins installs the mesh builtins into env. Every builtin runs
// through the session guard for generation gen, so a fenced evaluation
// cannot reach the state. Names are in the underscore form preprocessSource
// produces from kebab-case.
func registerBuiltins(env *zygo.Zlisp, sess *Session, gen uint64, res *EvalResult) {
	add := func(name string, fn builtin) {
		env.AddFunction(name, func(env *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
			a := parseArgs(args)
			out, err := sess.guard(gen, func(s *mesh.State) (zygo.Sexp, error) {
				return fn(s, a, res)
			})
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", strings.ReplaceAll(name, "_", "-"), err)
			}
			logger.Logger().Debug("builtin", "name", name)
			return out, nil
		})
	}

	// (vec3 1 2 3) needs no state, but stays fenced like the rest.
	add("vec3", func(_ *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		if len(a.positional) != 3 {
			return nil, fmt.Errorf("requires exactly 3 arguments, got %d", len(a.positional))
		}
		var c [3]float32
		for i, p := range a.positional {
			f, err := toFloat64(p)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", i, err)
			}
			c[i] = float32(f)
		}
		return &sexpVec3{vec: geom.Vec3{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (mask 0 2 5) -> channel bits as an integer
	add("mask", func(_ *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		chans := make([]mesh.Channel, 0, len(a.positional))
		for _, p := range a.positional {
			ch, err := toChannel(p)
			if err != nil {
				return nil, err
			}
			chans = append(chans, ch)
		}
		return intSexp(int64(mesh.MaskOf(chans...))), nil
	})

	// (select-sphere center radius :channel 0 :mode :add)
	add("select_sphere", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		center, radius, err := sphereArgs(a)
		if err != nil {
			return nil, err
		}
		var ch mesh.Channel
		if v := a.arg(2, "channel"); v != nil {
			if ch, err = toChannel(v); err != nil {
				return nil, fmt.Errorf("channel: %w", err)
			}
		}
		mode := mesh.Add
		if v := a.arg(3, "mode"); v != nil {
			name, err := toKeywordString(v)
			if err != nil {
				return nil, fmt.Errorf("mode: %w", err)
			}
			if mode, err = mesh.ParseMode(name); err != nil {
				return nil, err
			}
		}
		return zygo.SexpNull, s.SelectSphere(center, radius, ch, mode)
	})

	// (query-sphere center radius) -> union mask of the vertices inside
	add("query_sphere", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		center, radius, err := sphereArgs(a)
		if err != nil {
			return nil, err
		}
		m, err := s.QuerySphereMask(center, radius)
		if err != nil {
			return nil, err
		}
		return intSexp(int64(m)), nil
	})

	// (clear-selection [mask]) clears everything without a mask.
	add("clear_selection", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		return zygo.SexpNull, s.ClearSelection(m)
	})

	add("channels_in_use", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		if v := a.arg(0, "n"); v != nil {
			n, err := toInt(v)
			if err != nil {
				return nil, err
			}
			if err := s.SetChannelsInUse(int(n)); err != nil {
				return nil, err
			}
		}
		return intSexp(int64(s.ChannelsInUse())), nil
	})

	add("translate_all", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		d, err := vecArg(a, 0, "by")
		if err != nil {
			return nil, err
		}
		return zygo.SexpNull, s.TranslateAll(d)
	})

	// (translate-selection delta mask)
	add("translate_selection", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		d, err := vecArg(a, 0, "by")
		if err != nil {
			return nil, err
		}
		m, err := optionalMask(a, 1, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		return zygo.SexpNull, s.TranslateSelection(d, m)
	})

	// (transform-selection mask :translate v :scale s :axis v :angle deg :pivot v)
	add("transform_selection", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		var t, pivot geom.Vec3
		axis := geom.Vec3{Z: 1}
		scale, angle := 1.0, 0.0
		for key, dst := range map[string]*geom.Vec3{"translate": &t, "pivot": &pivot, "axis": &axis} {
			if v, ok := a.kw[key]; ok {
				if *dst, err = toVec3(v); err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
			}
		}
		for key, dst := range map[string]*float64{"scale": &scale, "angle": &angle} {
			if v, ok := a.kw[key]; ok {
				if *dst, err = toFloat64(v); err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
			}
		}
		rot := geom.QuaternionFromAxisAngle(axis, float32(angle*math.Pi/180))
		return zygo.SexpNull, s.TransformSelection(t, float32(scale), rot, pivot, m)
	})

	// (harmonic mask :displacement false) -> whether a solve ran
	add("harmonic", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		var disp bool
		if v := a.arg(1, "displacement"); v != nil {
			if disp, err = toBool(v); err != nil {
				return nil, fmt.Errorf("displacement: %w", err)
			}
		}
		ran, err := s.Harmonic(m, disp)
		return boolSexp(ran), err
	})

	add("arap", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		ran, err := s.Arap(m)
		return boolSexp(ran), err
	})

	add("reset", func(s *mesh.State, _ kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		return zygo.SexpNull, s.ResetV()
	})

	// (color-by-mask [visible])
	add("color_by_mask", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		return zygo.SexpNull, s.RecomputeColors(m)
	})

	// (color-single mask color-id)
	add("color_single", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		v := a.arg(1, "color")
		if v == nil {
			return nil, fmt.Errorf("requires a color id")
		}
		id, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return zygo.SexpNull, s.SetColorSingleByMask(m, int(id))
	})

	// (sync [visible]) -> bit set of the copied buffers
	add("sync", func(s *mesh.State, a kwArgs, res *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		rep, err := s.Sync(sess.Host, m)
		if err != nil {
			return nil, err
		}
		res.Report, res.Synced = rep, true
		return intSexp(int64(rep.Copied)), nil
	})

	// Counts are as of the last sync.
	add("channel_count", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		v := a.arg(0, "channel")
		if v == nil {
			return nil, fmt.Errorf("requires a channel")
		}
		ch, err := toChannel(v)
		if err != nil {
			return nil, err
		}
		return intSexp(int64(s.ChannelCount(ch))), nil
	})

	add("total_selected", func(s *mesh.State, _ kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		return intSexp(int64(s.TotalSelected())), nil
	})

	add("vertex_count", func(s *mesh.State, _ kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		return intSexp(int64(s.VertexCount())), nil
	})

	// (selection-center mask) -> vec3, or nil when the mask is empty
	add("selection_center", func(s *mesh.State, a kwArgs, _ *EvalResult) (zygo.Sexp, error) {
		m, err := optionalMask(a, 0, mesh.AllChannels)
		if err != nil {
			return nil, err
		}
		c, ok := s.SelectionCenter(m)
		if !ok {
			return zygo.SexpNull, nil
		}
		return &sexpVec3{vec: c}, nil
	})
}

func sphereArgs(a kwArgs) (geom.Vec3, float32, error) {
	center, err := vecArg(a, 0, "center")
	if err != nil {
		return geom.Vec3{}, 0, err
	}
	v := a.arg(1, "radius")
	if v == nil {
		return geom.Vec3{}, 0, fmt.Errorf("requires a radius")
	}
	r, err := toFloat64(v)
	if err != nil {
		return geom.Vec3{}, 0, fmt.Errorf("radius: %w", err)
	}
	return center, float32(r), nil
}

func vecArg(a kwArgs, i int, key string) (geom.Vec3, error) {
	v := a.arg(i, key)
	if v == nil {
		return geom.Vec3{}, fmt.Errorf("requires a vec3 %s", key)
	}
	vec, err := toVec3(v)
	if err != nil {
		return geom.Vec3{}, fmt.Errorf("%s: %w", key, err)
	}
	return vec, nil
}

func optionalMask(a kwArgs, i int, def mesh.Mask) (mesh.Mask, error) {
	v := a.arg(i, "mask")
	if v == nil {
		return def, nil
	}
	m, err := toMask(v)
	if err != nil {
		return 0, fmt.Errorf("mask: %w", err)
	}
	return m, nil
}
