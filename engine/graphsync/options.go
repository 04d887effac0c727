package graphsync

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/compozy/graphsync/pkg/config"
	"github.com/google/shlex"
	"github.com/spf13/afero"
)

var ErrInvalidOptions = errors.New("invalid sync options")

// Options is the immutable invocation record for one graph-ingestion run.
// It names the password environment variable; it never holds the password.
type Options struct {
	Command         string
	Neo4jURI        string
	Neo4jUser       string
	PasswordEnvVar  string
	Neo4jDatabase   string
	MappingFile     string
	BestEffort      bool
	RequestedSyncs  []string
	SelectedModules []string
	ExtraArgs       []string
	WorkDir         string
}

// OptionsFromConfig builds Options from the sync section.
func OptionsFromConfig(cfg *config.SyncConfig) (*Options, error) {
	extra, err := shlex.Split(cfg.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse extra args: %w", ErrInvalidOptions, err)
	}
	return &Options{
		Command:         cfg.Command,
		Neo4jURI:        cfg.Neo4jURI,
		Neo4jUser:       cfg.Neo4jUser,
		PasswordEnvVar:  cfg.PasswordEnvVar,
		Neo4jDatabase:   cfg.Neo4jDatabase,
		MappingFile:     cfg.MappingFile,
		BestEffort:      cfg.BestEffort,
		RequestedSyncs:  append([]string(nil), cfg.RequestedSyncs...),
		SelectedModules: append([]string(nil), cfg.SelectedModules...),
		ExtraArgs:       extra,
		WorkDir:         cfg.WorkDir,
	}, nil
}

// Validate checks required fields and that referenced files exist on fs.
func (o *Options) Validate(fs afero.Fs) error {
	switch {
	case o.Command == "":
		return fmt.Errorf("%w: command is required", ErrInvalidOptions)
	case o.Neo4jURI == "":
		return fmt.Errorf("%w: neo4j uri is required", ErrInvalidOptions)
	case o.Neo4jUser == "":
		return fmt.Errorf("%w: neo4j user is required", ErrInvalidOptions)
	case o.PasswordEnvVar == "":
		return fmt.Errorf("%w: password env var is required", ErrInvalidOptions)
	}
	if o.MappingFile != "" {
		info, err := fs.Stat(o.MappingFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: mapping file %s does not exist", ErrInvalidOptions, o.MappingFile)
			}
			return fmt.Errorf("%w: failed to stat mapping file: %w", ErrInvalidOptions, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: mapping file %s is a directory", ErrInvalidOptions, o.MappingFile)
		}
	}
	return nil
}

// Args returns the argument vector for the ingestion tool. Request overrides
// replace the static requested syncs and set the update tag.
func (o *Options) Args(req Request) []string {
	args := []string{
		"--neo4j-uri", o.Neo4jURI,
		"--neo4j-user", o.Neo4jUser,
		"--neo4j-password-env-var", o.PasswordEnvVar,
	}
	if o.Neo4jDatabase != "" {
		args = append(args, "--neo4j-database", o.Neo4jDatabase)
	}
	if o.MappingFile != "" {
		args = append(args, "--permission-relationships-file", o.MappingFile)
	}
	if o.BestEffort {
		args = append(args, "--aws-best-effort-mode")
	}
	syncs := o.RequestedSyncs
	if len(req.RequestedSyncs) > 0 {
		syncs = req.RequestedSyncs
	}
	if len(syncs) > 0 {
		args = append(args, "--aws-requested-syncs", strings.Join(syncs, ","))
	}
	if len(o.SelectedModules) > 0 {
		args = append(args, "--selected-modules", strings.Join(o.SelectedModules, ","))
	}
	if req.UpdateTag > 0 {
		args = append(args, "--update-tag", strconv.FormatInt(req.UpdateTag, 10))
	}
	return append(args, o.ExtraArgs...)
}
