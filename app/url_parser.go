package app

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	valid "github.com/asaskevich/govalidator"
)

// maxExpandedPaths bounds how many paths a single case path may expand to.
const maxExpandedPaths = 10000

var (
	errParserInvalidAmountOfRangeParts = errors.New("invalid number range")
	errParserInvalidRangeType          = errors.New("not a valid number range")
)

// Parser expands range patterns in case paths, e.g. /users/{1-3,7} becomes
// /users/1, /users/2, /users/3 and /users/7.
type Parser struct{}

func NewURLParser() Parser {
	return Parser{}
}

type Options struct {
	PatternPrefix string // default: {
	PatternSuffix string // default: }
}

func DefaultOptions() Options {
	return Options{PatternPrefix: "{", PatternSuffix: "}"}
}

func (p Parser) ParsePath(path string, opts Options) ([]string, error) {
	if opts.PatternPrefix == "" || opts.PatternSuffix == "" {
		return []string{}, fmt.Errorf(
			"ParsePath: %+v: PatternPrefix and PatternSuffix cannot be empty",
			opts,
		)
	}

	pattern := regexp.MustCompile(
		regexp.QuoteMeta(opts.PatternPrefix) + `([a-zA-Z0-9,.\-]+)` + regexp.QuoteMeta(opts.PatternSuffix),
	)
	match := pattern.FindStringSubmatch(path)
	if match == nil {
		return []string{path}, nil
	}

	values, err := p.expandValues(match[1])
	if err != nil {
		return []string{}, err
	}

	paths := []string{}
	for _, value := range values {
		// Later patterns in the same path are expanded recursively.
		expanded, err := p.ParsePath(strings.Replace(path, match[0], value, 1), opts)
		if err != nil {
			return []string{}, err
		}
		paths = append(paths, expanded...)
		if len(paths) > maxExpandedPaths {
			return []string{}, fmt.Errorf("%q: expands to more than %d paths: %w", path, maxExpandedPaths, errParserInvalidRangeType)
		}
	}

	return paths, nil
}

// expandValues turns "0,2-4" into 0, 2, 3, 4. Parts without a dash are
// taken literally.
func (p Parser) expandValues(list string) ([]string, error) {
	values := []string{}
	for _, part := range strings.Split(list, ",") {
		if strings.Contains(part, "-") {
			first, last, err := p.parseRange(part)
			if err != nil {
				return nil, err
			}
			for n := int64(0); n <= last-first; n++ {
				values = append(values, strconv.FormatInt(first+n, 10))
			}
		} else {
			values = append(values, part)
		}

		if len(values) > maxExpandedPaths {
			return nil, fmt.Errorf("%q: expands to more than %d values: %w", list, maxExpandedPaths, errParserInvalidRangeType)
		}
	}

	return values, nil
}

func (Parser) parseRange(part string) (int64, int64, error) {
	bounds := strings.Split(part, "-")

	// A leading dash belongs to a negative lower bound, a doubled dash to a
	// negative upper bound.
	if len(bounds) > 2 && bounds[0] == "" {
		bounds = append([]string{"-" + bounds[1]}, bounds[2:]...)
	}
	if len(bounds) > 2 && bounds[1] == "" {
		bounds = []string{bounds[0], "-" + bounds[2]}
	}

	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("%q: number of elements != 2, is %d: %w", part, len(bounds), errParserInvalidAmountOfRangeParts)
	}
	if !valid.IsInt(bounds[0]) {
		return 0, 0, fmt.Errorf("%q: first number: %w", part, errParserInvalidRangeType)
	}
	if !valid.IsInt(bounds[1]) {
		return 0, 0, fmt.Errorf("%q: second number: %w", part, errParserInvalidRangeType)
	}

	first, err := strconv.ParseInt(bounds[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: first number: %w", part, errParserInvalidRangeType)
	}
	last, err := strconv.ParseInt(bounds[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: second number: %w", part, errParserInvalidRangeType)
	}
	if last < first {
		return 0, 0, fmt.Errorf("%q: first number cannot be bigger than second number: %w", part, errParserInvalidRangeType)
	}
	// A negative difference means the subtraction overflowed.
	if span := last - first; span < 0 || span >= maxExpandedPaths {
		return 0, 0, fmt.Errorf("%q: range spans more than %d values: %w", part, maxExpandedPaths, errParserInvalidRangeType)
	}

	return first, last, nil
}
