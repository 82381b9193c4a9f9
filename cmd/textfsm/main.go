// Command textfsm is a thin front end over the template compiler, FSM
// executor and command index: compile a template, parse a data file or
// stdin, optionally resolve the template through an index, and print
// the resulting records as a simple table.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"gotextfsm/pkg/fsm"
	"gotextfsm/pkg/fsmerr"
	"gotextfsm/pkg/index"
	"gotextfsm/pkg/record"
	"gotextfsm/pkg/template"
)

// runConfig is the CLI's own optional YAML configuration, loaded the
// same way the teacher loads its rule table: load, validate, use.
type runConfig struct {
	IndexPath string `yaml:"index_path"`
	Platform  string `yaml:"platform"`
	LogLevel  string `yaml:"log_level"`
}

func loadRunConfig(path string) (runConfig, error) {
	var cfg runConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fsmerr.NewIoError(path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fsmerr.NewParseError("config", "%s: %v", path, err)
	}
	return cfg, nil
}

func main() {
	templatePath := flag.String("template", "", "path to a TextFSM template file")
	dataPath := flag.String("data", "-", "path to the data file to parse (\"-\" for stdin)")
	indexPath := flag.String("index", "", "path to a command index CSV (overrides config index_path)")
	command := flag.String("command", "", "command text used to resolve a template through the index")
	platform := flag.String("platform", "", "platform bucket used for index lookup (overrides config platform)")
	configPath := flag.String("config", "", "path to an optional YAML run configuration")
	lowercase := flag.Bool("lowercase-keys", false, "lowercase every emitted record's field names")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := loadRunConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load run configuration")
	}
	if cfg.LogLevel != "" {
		if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			logger = logger.Level(level)
		}
	}
	if *indexPath == "" {
		*indexPath = cfg.IndexPath
	}
	if *platform == "" {
		*platform = cfg.Platform
	}

	sink := func(d fsmerr.Diagnostic) {
		logger.Warn().Str("kind", diagKindName(d.Kind)).Msg(d.Message)
	}

	resolvedTemplate := *templatePath
	if resolvedTemplate == "" {
		if *indexPath == "" || *command == "" {
			logger.Fatal().Msg("either -template, or both -index and -command, must be given")
		}
		idx, err := index.Load(*indexPath, sink)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load command index")
		}
		dir, row, ok := idx.Lookup(platformOrDefault(*platform), *command)
		if !ok {
			logger.Fatal().Str("command", *command).Msg("no index row matched command")
		}
		if len(row.Templates) == 0 || row.Templates[0] == "" {
			logger.Fatal().Str("command", *command).Msg("matched index row has no template")
		}
		resolvedTemplate = dir + string(os.PathSeparator) + row.Templates[0]
	}

	program, err := template.CompileFile(resolvedTemplate, sink)
	if err != nil {
		logger.Fatal().Err(err).Str("template", resolvedTemplate).Msg("failed to compile template")
	}

	data, err := readData(*dataPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read data")
	}

	rt := fsm.NewRuntime(program, sink)
	var opts []fsm.Option
	if *lowercase {
		opts = append(opts, fsm.LowercaseKeysOption)
	}
	records, err := rt.ParseString(data, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse data")
	}

	printTable(os.Stdout, program.Values, records)
}

func platformOrDefault(p string) string {
	if p == "" {
		return "no-platform"
	}
	return p
}

func readData(path string) (string, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fsmerr.NewIoError("stdin", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fsmerr.NewIoError(path, err)
	}
	return string(data), nil
}

// printTable renders records as tab-separated lines, one column per
// declared value, in declaration order, after a header line of value
// names. Columns are not padded or aligned.
func printTable(w io.Writer, values []fsm.ValueDef, records []*record.DataRecord) {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = v.Name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))
	for _, rec := range records {
		cells := make([]string, len(names))
		for i, name := range names {
			if v, ok := rec.Get(name); ok {
				cells[i] = v.String()
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

func diagKindName(k fsmerr.DiagnosticKind) string {
	switch k {
	case fsmerr.DiagTrailingWhitespace:
		return "trailing-whitespace"
	case fsmerr.DiagAngleBracketRewrite:
		return "angle-bracket-rewrite"
	case fsmerr.DiagFillupEmptyPredecessor:
		return "fillup-empty-predecessor"
	case fsmerr.DiagTrailingDollar:
		return "trailing-dollar"
	case fsmerr.DiagRegexAutoRepair:
		return "regex-auto-repair"
	default:
		return "unknown"
	}
}
