package grammar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/scope"
)

// Format identifies the on-disk encoding of a grammar file.
type Format int

const (
	FormatJSON Format = iota
	FormatPlist
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatPlist:
		return "plist"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatForPath picks the format from a file name:
// *.json → JSON, *.tmLanguage/*.plist → plist, *.yaml/*.yml → YAML.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".tmlanguage", ".plist", ".tmtheme":
		return FormatPlist, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
	}
}

// IsGrammarFile reports whether path looks like a grammar file.
func IsGrammarFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, suffix := range []string{".tmlanguage", ".tmlanguage.json", ".tmlanguage.yaml", ".tmlanguage.yml"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// Load reads and decodes the grammar file at path.
func Load(path string) (*Syntax, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: grammar paths come from user config
	if err != nil {
		return nil, fmt.Errorf("reading grammar: %w", err)
	}
	syn, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("grammar %s: %w", filepath.Base(path), err)
	}
	return syn, nil
}

// Parse decodes grammar data in the given format.
func Parse(data []byte, format Format) (*Syntax, error) {
	tree, err := DecodeTree(data, format)
	if err != nil {
		return nil, err
	}
	return Decode(tree)
}

// DecodeTree decodes data into a generic settings tree.
func DecodeTree(data []byte, format Format) (map[string]any, error) {
	var tree map[string]any
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&tree)
	case FormatPlist:
		_, err = plist.Unmarshal(data, &tree)
	case FormatYAML:
		err = yaml.Unmarshal(data, &tree)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidShape, format, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidShape)
	}
	return tree, nil
}

type rawSyntax struct {
	Name           string                `mapstructure:"name"`
	ScopeName      string                `mapstructure:"scopeName"`
	FileTypes      []string              `mapstructure:"fileTypes"`
	FirstLineMatch string                `mapstructure:"firstLineMatch"`
	Hidden         bool                  `mapstructure:"hidden"`
	Patterns       []rawPattern          `mapstructure:"patterns"`
	Repository     map[string]rawPattern `mapstructure:"repository"`
}

type rawPattern struct {
	Include       string                `mapstructure:"include"`
	Name          string                `mapstructure:"name"`
	ContentName   string                `mapstructure:"contentName"`
	Match         string                `mapstructure:"match"`
	Begin         string                `mapstructure:"begin"`
	End           string                `mapstructure:"end"`
	Captures      map[string]rawCapture `mapstructure:"captures"`
	BeginCaptures map[string]rawCapture `mapstructure:"beginCaptures"`
	EndCaptures   map[string]rawCapture `mapstructure:"endCaptures"`
	Patterns      []rawPattern          `mapstructure:"patterns"`
	Disabled      bool                  `mapstructure:"disabled"`
}

type rawCapture struct {
	Name     string       `mapstructure:"name"`
	Patterns []rawPattern `mapstructure:"patterns"`
}

// Decode converts a generic settings tree into a Syntax.
func Decode(tree map[string]any) (*Syntax, error) {
	for _, key := range []string{"scopeName", "patterns"} {
		if _, ok := tree[key]; !ok {
			return nil, fieldErr(key, ErrMissingField)
		}
	}

	var raw rawSyntax
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	top, err := scope.New(raw.ScopeName)
	if err != nil {
		return nil, fieldErr("scopeName", err)
	}

	syn := &Syntax{
		Name:           raw.Name,
		ScopeName:      top,
		FileTypes:      raw.FileTypes,
		FirstLineMatch: raw.FirstLineMatch,
		Hidden:         raw.Hidden,
		Repository:     make(Repository, len(raw.Repository)),
	}
	if syn.Name == "" {
		syn.Name = top.String()
	}
	if syn.FirstLineMatch != "" {
		if err := checkRegex(syn.FirstLineMatch); err != nil {
			return nil, fieldErr("firstLineMatch", err)
		}
	}

	syn.Patterns, err = decodePatterns(raw.Patterns, "patterns")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(raw.Repository))
	for name := range raw.Repository {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := "repository." + name
		list, err := decodePattern(raw.Repository[name], path)
		if err != nil {
			return nil, err
		}
		syn.Repository[name] = list
	}

	log.Debug(log.CatGrammar, "decoded grammar",
		"scope", syn.ScopeName, "patterns", len(syn.Patterns), "repository", len(syn.Repository))
	return syn, nil
}

func decodePatterns(raws []rawPattern, path string) (Patterns, error) {
	var out Patterns
	for i, raw := range raws {
		list, err := decodePattern(raw, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

// decodePattern returns a list because container patterns ({patterns: [...]}
// with no match/begin) are flattened into their parent list.
func decodePattern(raw rawPattern, path string) (Patterns, error) {
	if raw.Disabled {
		return nil, nil
	}

	switch {
	case raw.Include != "":
		inc, ok := ParseInclude(raw.Include)
		if !ok {
			return nil, fieldErr(path+".include", fmt.Errorf("%w: %q", ErrInvalidShape, raw.Include))
		}
		return Patterns{inc}, nil

	case raw.Match != "":
		if err := checkRegex(raw.Match); err != nil {
			return nil, fieldErr(path+".match", err)
		}
		name, err := optionalScope(raw.Name, path+".name")
		if err != nil {
			return nil, err
		}
		caps, err := decodeCaptures(raw.Captures, path+".captures")
		if err != nil {
			return nil, err
		}
		return Patterns{&Match{Name: name, Regex: raw.Match, Captures: caps}}, nil

	case raw.Begin != "":
		return decodeRegion(raw, path)

	case raw.End != "":
		return nil, fieldErr(path+".begin", fmt.Errorf("%w: end without begin", ErrMissingField))

	case len(raw.Patterns) > 0:
		return decodePatterns(raw.Patterns, path+".patterns")

	default:
		return nil, fieldErr(path, fmt.Errorf("%w: pattern has no include, match, begin or patterns", ErrInvalidShape))
	}
}

func decodeRegion(raw rawPattern, path string) (Patterns, error) {
	if raw.End == "" {
		return nil, fieldErr(path+".end", ErrMissingField)
	}
	if err := checkRegex(raw.Begin); err != nil {
		return nil, fieldErr(path+".begin", err)
	}
	if err := checkRegex(raw.End); err != nil {
		return nil, fieldErr(path+".end", err)
	}

	name, err := optionalScope(raw.Name, path+".name")
	if err != nil {
		return nil, err
	}
	content, err := optionalScope(raw.ContentName, path+".contentName")
	if err != nil {
		return nil, err
	}

	beginRaw, endRaw := raw.BeginCaptures, raw.EndCaptures
	beginPath, endPath := path+".beginCaptures", path+".endCaptures"
	// Plain "captures" on a region applies to both delimiters.
	if len(raw.Captures) > 0 {
		if beginRaw == nil {
			beginRaw, beginPath = raw.Captures, path+".captures"
		}
		if endRaw == nil {
			endRaw, endPath = raw.Captures, path+".captures"
		}
	}
	beginCaps, err := decodeCaptures(beginRaw, beginPath)
	if err != nil {
		return nil, err
	}
	endCaps, err := decodeCaptures(endRaw, endPath)
	if err != nil {
		return nil, err
	}

	body, err := decodePatterns(raw.Patterns, path+".patterns")
	if err != nil {
		return nil, err
	}

	return Patterns{&ScopeMatch{
		Name:          name,
		ContentName:   content,
		Begin:         raw.Begin,
		End:           raw.End,
		BeginCaptures: beginCaps,
		EndCaptures:   endCaps,
		Patterns:      body,
	}}, nil
}

func decodeCaptures(raw map[string]rawCapture, path string) (Captures, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(Captures, 0, len(raw))
	for key, c := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || idx < 0 {
			return nil, fieldErr(path+"."+key, fmt.Errorf("%w: capture index must be a non-negative integer", ErrInvalidShape))
		}
		if len(c.Patterns) > 0 {
			log.Debug(log.CatGrammar, "ignoring capture sub-patterns", "path", path+"."+key)
		}
		if c.Name == "" {
			continue
		}
		sc, err := scope.New(c.Name)
		if err != nil {
			return nil, fieldErr(path+"."+key+".name", err)
		}
		out = append(out, Capture{Index: idx, Scope: sc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func optionalScope(name, path string) (scope.Scope, error) {
	if strings.TrimSpace(name) == "" {
		return scope.Scope{}, nil
	}
	sc, err := scope.New(name)
	if err != nil {
		return scope.Scope{}, fieldErr(path, err)
	}
	return sc, nil
}

// checkRegex validates pattern text with the same engine the parser uses.
func checkRegex(expr string) error {
	if _, err := regexp2.Compile(expr, regexp2.None); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegex, err)
	}
	return nil
}
