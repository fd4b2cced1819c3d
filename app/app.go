package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

type parser interface {
	ParsePath(string, Options) ([]string, error)
}

type sender interface {
	Send(context.Context, Request) (*Response, error)
}

// App runs a set of cases sequentially against one RequestContext and
// collects a Finding for every case that fails.
type App struct {
	Cases    []Case
	Results  *Results
	parser   parser
	session  sender
	logger   *slog.Logger
	recorder *Recorder
}

func NewApp(
	session sender,
	parser parser,
	logger *slog.Logger,
	recorder *Recorder,
) *App {
	if logger == nil {
		logger = discardLogger()
	}

	return &App{
		Cases:    []Case{},
		parser:   parser,
		session:  session,
		logger:   logger,
		recorder: recorder,
		Results: &Results{
			Findings: []Finding{},
		},
	}
}

func (a *App) AddCases(cases Cases) {
	a.Cases = cases.Cases
}

// Run checks every case in order. A failing case never stops the run; Run
// only returns an error when there is nothing to run, the context is
// cancelled or the RequestContext was released underneath it.
func (a *App) Run(ctx context.Context) error {
	if len(a.Cases) == 0 {
		return ErrNoCasesDefined
	}

	totalPaths := 0
	totalCheckedPaths := 0
	for _, c := range a.Cases {
		if err := ctx.Err(); err != nil {
			return err
		}

		a.logger.Info("checking",
			slog.String("case", c.label()),
			slog.String("method", string(c.Method)),
			slog.String("path", c.Path),
		)

		initialFindings := len(a.Results.Findings)
		checkedPaths, countPaths, err := a.CheckCase(ctx, c)
		totalCheckedPaths += checkedPaths
		totalPaths += countPaths
		if err != nil {
			a.logger.Error("run aborted", slog.String("case", c.label()), slog.Any("error", err))

			return err
		}

		passed := len(a.Results.Findings) == initialFindings
		a.Results.Summary.Total++
		if passed {
			a.Results.Summary.Passed++
		} else {
			a.Results.Summary.Failed++
		}
		a.recorder.ObserveCase(passed)

		result := "Success"
		level := slog.LevelInfo
		if !passed {
			result = "ERROR"
			level = slog.LevelWarn
		}
		a.logger.Log(ctx, level, result,
			slog.String("case", c.label()),
			slog.Int("checked_paths", checkedPaths),
			slog.Int("total_paths", countPaths),
		)
	}

	a.logger.Info("done",
		slog.Int("cases", a.Results.Summary.Total),
		slog.Int("passed", a.Results.Summary.Passed),
		slog.Int("failed", a.Results.Summary.Failed),
		slog.Int("checked_paths", totalCheckedPaths),
		slog.Int("total_paths", totalPaths),
	)

	return nil
}

// CheckCase expands the case path and checks each concrete path, stopping at
// the first failure. It returns the number of checked and expanded paths.
func (a *App) CheckCase(ctx context.Context, c Case) (int, int, error) {
	opts, err := buildOptsFromCase(c)
	if err != nil {
		a.addFinding(c, c.Path, err)

		return 0, 0, nil
	}

	paths, err := a.parser.ParsePath(c.Path, opts)
	countPaths := len(paths)
	checkedPaths := 0
	if err != nil {
		a.addFinding(c, c.Path, fmt.Errorf("could not resolve relative paths: %w", err))

		return checkedPaths, countPaths, nil
	}

	for _, path := range paths {
		res, err := a.session.Send(ctx, c.request(path))
		if err != nil {
			if aborts(ctx, err) {
				return checkedPaths, countPaths, err
			}
			a.addFinding(c, path, err)

			return checkedPaths, countPaths, nil
		}

		if err := a.evaluate(ctx, c, path, res); err != nil {
			if aborts(ctx, err) {
				return checkedPaths, countPaths, err
			}
			a.addFinding(c, path, err)

			return checkedPaths, countPaths, nil
		}

		checkedPaths++
	}

	return checkedPaths, countPaths, nil
}

// aborts reports whether err ends the whole run rather than a single case.
func aborts(ctx context.Context, err error) bool {
	return errors.Is(err, ErrContextReleased) || ctx.Err() != nil
}

func buildOptsFromCase(c Case) (Options, error) {
	if c.PatternPrefix != nil && c.PatternSuffix == nil {
		return Options{}, fmt.Errorf("%s: %w", c.Path, ErrPrefixFilledButSuffixNot)
	}
	if c.PatternPrefix == nil && c.PatternSuffix != nil {
		return Options{}, fmt.Errorf("%s: %w", c.Path, ErrSuffixFilledButPrefixNot)
	}

	opts := DefaultOptions()
	if c.PatternPrefix != nil {
		opts.PatternPrefix = *c.PatternPrefix
		opts.PatternSuffix = *c.PatternSuffix
	}

	return opts, nil
}

func (a *App) evaluate(ctx context.Context, c Case, path string, res *Response) error {
	expect := c.Expect

	if err := checkStatus(expect.Status, res.Status); err != nil {
		return err
	}

	// Error pages of a status-only case are never decoded.
	if !IsSuccess(res.Status) && !needsBody(expect) && !expect.Idempotent {
		return nil
	}

	shape, err := res.Shape()
	if err != nil {
		return err
	}

	if needsBody(expect) {
		if shape == ShapeEmpty {
			return failf(ErrUnexpectedShape, "empty body")
		}
		if err := checkBody(c, path, shape, res); err != nil {
			return err
		}
	}

	if expect.Idempotent {
		return a.checkIdempotent(ctx, c, path, res)
	}

	return nil
}

func checkStatus(expected, actual int) error {
	if expected == 0 {
		if !IsSuccess(actual) {
			return failf(ErrUnexpectedStatusCode, "expected 2xx, got %d", actual)
		}

		return nil
	}

	if expected != actual {
		return failf(ErrUnexpectedStatusCode, "expected %d, got %d", expected, actual)
	}

	return nil
}

func needsBody(e Expectation) bool {
	return len(e.Fields) > 0 || len(e.Types) > 0 || len(e.Values) > 0 ||
		e.Count != nil || e.EchoBody || e.EqualBody || e.MatchPathID
}

func checkBody(c Case, path string, shape Shape, res *Response) error {
	expect := c.Expect

	var items []map[string]any
	var obj map[string]any
	var err error
	if shape == ShapeArray {
		items, err = res.Objects()
	} else {
		obj, err = res.Object()
		items = []map[string]any{obj}
	}
	if err != nil {
		return err
	}

	if expect.Count != nil {
		if shape != ShapeArray {
			return failf(ErrUnexpectedType, "expected array, got object")
		}
		if len(items) != *expect.Count {
			return failf(ErrUnexpectedCount, "expected %d, got %d", *expect.Count, len(items))
		}
	}

	for i, item := range items {
		if err := checkItem(expect, item); err != nil {
			if shape == ShapeArray {
				return fmt.Errorf("item %d: %w", i, err)
			}

			return err
		}
	}

	if expect.MatchPathID || expect.EchoBody || expect.EqualBody {
		if shape != ShapeObject {
			return failf(ErrUnexpectedType, "expected object, got array")
		}
	}

	if expect.MatchPathID {
		if err := checkPathID(path, obj); err != nil {
			return err
		}
	}

	if expect.EchoBody {
		if err := checkEcho(c.Body, obj); err != nil {
			return err
		}
	}

	if expect.EqualBody {
		diff, err := DiffJSON(c.Body, res.Body)
		if err != nil {
			return err
		}
		if diff != "" {
			return &AssertionFailure{Err: ErrJSONMismatch, Detail: "body", Diff: diff}
		}
	}

	return nil
}

func checkItem(expect Expectation, item map[string]any) error {
	if missing := HasFields(item, expect.Fields); len(missing) > 0 {
		return failf(ErrMissingFields, "%s", strings.Join(missing, ", "))
	}

	for _, field := range sortedKeys(expect.Types) {
		kind := expect.Types[field]
		value, ok := item[field]
		if !ok {
			return failf(ErrMissingFields, "%s", field)
		}
		if !IsType(value, kind) {
			return failf(ErrUnexpectedType, "%s: expected %s, got %s", field, kind, kindOf(value))
		}
	}

	for _, field := range sortedKeys(expect.Values) {
		value, ok := item[field]
		if !ok {
			return failf(ErrMissingFields, "%s", field)
		}
		diff, err := DiffJSON(
			map[string]json.RawMessage{field: expect.Values[field]},
			map[string]any{field: value},
		)
		if err != nil {
			return err
		}
		if diff != "" {
			return &AssertionFailure{Err: ErrJSONMismatch, Detail: field, Diff: diff}
		}
	}

	return nil
}

func checkPathID(path string, obj map[string]any) error {
	path, _, _ = strings.Cut(path, "?")
	segment := path[strings.LastIndex(path, "/")+1:]
	want, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return failf(ErrUnexpectedType, "path %s does not end in an id", path)
	}

	value, ok := obj["id"]
	if !ok {
		return failf(ErrMissingFields, "id")
	}
	got, ok := intValue(value)
	if !ok {
		return failf(ErrUnexpectedType, "id: expected %s, got %s", KindInteger, kindOf(value))
	}
	if got != want {
		return failf(ErrJSONMismatch, "id: expected %d, got %d", want, got)
	}

	return nil
}

func checkEcho(body []byte, obj map[string]any) error {
	value, err := decodeJSON(body)
	if err != nil {
		return fmt.Errorf("request body: %w", err)
	}
	sent, ok := value.(map[string]any)
	if !ok {
		return failf(ErrUnexpectedType, "request body: expected object, got %s", kindOf(value))
	}

	diff, err := Contains(obj, sent)
	if err != nil {
		return err
	}
	if diff != "" {
		return &AssertionFailure{Err: ErrJSONMismatch, Detail: "echoed fields", Diff: diff}
	}

	return nil
}

func (a *App) checkIdempotent(ctx context.Context, c Case, path string, first *Response) error {
	second, err := a.session.Send(ctx, c.request(path))
	if err != nil {
		return err
	}

	if second.Status != first.Status {
		return failf(ErrNotIdempotent, "status %d, then %d", first.Status, second.Status)
	}
	if bytes.Equal(first.Body, second.Body) {
		return nil
	}

	if len(first.Body) == 0 || len(second.Body) == 0 {
		return failf(ErrNotIdempotent, "body of %d bytes, then %d bytes", len(first.Body), len(second.Body))
	}
	if _, err := second.JSON(); err != nil {
		return fmt.Errorf("repeated request: %w", err)
	}

	diff, err := DiffJSON(first.Body, second.Body)
	if err != nil {
		return err
	}

	return &AssertionFailure{Err: ErrNotIdempotent, Detail: "body", Diff: diff}
}

func (a *App) addFinding(c Case, url string, err error) {
	diff := ""
	var failure *AssertionFailure
	if errors.As(err, &failure) {
		diff = failure.Diff
	}

	a.Results.Findings = append(
		a.Results.Findings,
		Finding{Case: c.label(), URL: url, Error: fmt.Sprint(err), Diff: diff},
	)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
