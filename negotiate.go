package h2kv

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// Specificity ranks how precisely a media range names a type.
type Specificity int

const (
	SpecificityAny     Specificity = iota // */*
	SpecificityType                       // type/*
	SpecificityExact                      // type/subtype
	specificityNoMatch Specificity = -1
)

// MediaRange is one entry of an Accept header.
type MediaRange struct {
	Type    string
	Subtype string
	Quality float64
}

// Specificity returns the rank of the range.
func (r MediaRange) Specificity() Specificity {
	switch {
	case r.Type == "*":
		return SpecificityAny
	case r.Subtype == "*":
		return SpecificityType
	default:
		return SpecificityExact
	}
}

// Matches reports whether the range covers mediaType.
func (r MediaRange) Matches(mediaType string) bool {
	typ, sub, _ := strings.Cut(mediaType, "/")
	switch r.Specificity() {
	case SpecificityAny:
		return true
	case SpecificityType:
		return r.Type == typ
	default:
		return r.Type == typ && r.Subtype == sub
	}
}

var acceptAnything = []MediaRange{{Type: "*", Subtype: "*", Quality: 1}}

// ParseAccept parses an Accept header. Malformed ranges are skipped; a
// header without any usable range accepts anything.
func ParseAccept(header string) []MediaRange {
	var ranges []MediaRange
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := parseMediaRange(part)
		if err != nil {
			continue
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		return acceptAnything
	}
	return ranges
}

func parseMediaRange(s string) (MediaRange, error) {
	// Some clients send a bare "*".
	if s == "*" || strings.HasPrefix(s, "*;") {
		s = "*/*" + strings.TrimPrefix(s, "*")
	}

	essence, params, err := mime.ParseMediaType(s)
	if err != nil {
		return MediaRange{}, fmt.Errorf("parse media range %q: %w", s, err)
	}

	typ, sub, ok := strings.Cut(essence, "/")
	if !ok || typ == "" || sub == "" || (typ == "*" && sub != "*") {
		return MediaRange{}, fmt.Errorf("parse media range %q: malformed type", s)
	}

	q := 1.0
	if qs, ok := params["q"]; ok {
		q, err = strconv.ParseFloat(qs, 64)
		if err != nil || q < 0 || q > 1 {
			return MediaRange{}, fmt.Errorf("parse media range %q: invalid quality", s)
		}
	}

	return MediaRange{Type: typ, Subtype: sub, Quality: q}, nil
}

// quality returns the quality the ranges assign to mediaType, taken from the
// most specific matching range, and that range's specificity.
func quality(ranges []MediaRange, mediaType string) (float64, Specificity) {
	best, q := specificityNoMatch, 0.0
	for _, r := range ranges {
		if !r.Matches(mediaType) {
			continue
		}
		s := r.Specificity()
		if s > best || (s == best && r.Quality > q) {
			best, q = s, r.Quality
		}
	}
	return q, best
}

// Negotiate selects one representation out of available, which must be in
// insertion order.
//
// A non-empty hint (the extension of the request path) wins when a
// representation carries that extension, or failing that, the media type the
// extension stands for. Otherwise the Accept header decides: the highest
// quality wins, then the most specific matching range, then insertion order.
// ErrNotAcceptable is returned when nothing has a quality above zero.
func Negotiate(available []Representation, accept, hint string) (Representation, error) {
	if len(available) == 0 {
		return Representation{}, ErrNotAcceptable
	}

	if hint != "" {
		for _, rep := range available {
			if rep.Ext == hint {
				return rep, nil
			}
		}
		mt := MediaTypeForExtension(hint)
		for _, rep := range available {
			if rep.MediaType == mt {
				return rep, nil
			}
		}
	}

	ranges := ParseAccept(accept)

	chosen := -1
	var chosenQ float64
	var chosenS Specificity
	for i, rep := range available {
		q, s := quality(ranges, rep.MediaType)
		if q <= 0 {
			continue
		}
		if chosen < 0 || q > chosenQ || (q == chosenQ && s > chosenS) {
			chosen, chosenQ, chosenS = i, q, s
		}
	}

	if chosen < 0 {
		return Representation{}, ErrNotAcceptable
	}
	return available[chosen], nil
}
