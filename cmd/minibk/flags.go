package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
	"github.com/zhiduo233/minibackup/internal/config"
	"github.com/zhiduo233/minibackup/internal/filter"
)

// cipherValue is a pflag.Value that parses a cipher mode name.
type cipherValue struct{ mode *cipher.Mode }

func (v cipherValue) String() string {
	if v.mode == nil {
		return ""
	}
	return v.mode.String()
}

func (v cipherValue) Set(s string) error {
	m, err := cipher.ParseMode(s)
	if err != nil {
		return err
	}
	*v.mode = m
	return nil
}

func (cipherValue) Type() string { return "cipher" }

// compressionValue is a pflag.Value that parses a compression mode name.
type compressionValue struct{ mode *compress.Mode }

func (v compressionValue) String() string {
	if v.mode == nil {
		return ""
	}
	return v.mode.String()
}

func (v compressionValue) Set(s string) error {
	m, err := compress.ParseMode(s)
	if err != nil {
		return err
	}
	*v.mode = m
	return nil
}

func (compressionValue) Type() string { return "compression" }

// typeValue is a pflag.Value for the --type filter.
type typeValue struct{ t *filter.Type }

func (v typeValue) String() string {
	if v.t == nil {
		return ""
	}
	return v.t.String()
}

func (v typeValue) Set(s string) error {
	t, err := filter.ParseType(s)
	if err != nil {
		return err
	}
	*v.t = t
	return nil
}

func (typeValue) Type() string { return "type" }

// filterRule is one --exclude or --include pattern in command-line order.
type filterRule struct {
	pattern string
	include bool
}

// ruleFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared list.
type ruleFlag struct {
	rules   *[]filterRule
	include bool
}

func (*ruleFlag) String() string { return "" }
func (*ruleFlag) Type() string   { return "string" }

func (f *ruleFlag) Set(val string) error {
	*f.rules = append(*f.rules, filterRule{pattern: val, include: f.include})
	return nil
}

// filterFlags collects the predicate and pattern flags shared by pack.
type filterFlags struct {
	name      string
	path      string
	typ       filter.Type
	minSize   string
	maxSize   string
	newerThan string
	uid       uint32
	file      string
	rules     []filterRule
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "only entries whose base name contains STR")
	fs.StringVar(&f.path, "path", "", "only entries whose relative path contains STR")
	fs.Var(typeValue{&f.typ}, "type", "only entries of TYPE (any, file, dir, symlink)")
	fs.StringVar(&f.minSize, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	fs.StringVar(&f.maxSize, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
	fs.StringVar(&f.newerThan, "newer-than", "", "skip entries modified longer ago than AGE (e.g. 36h, 7d)")
	fs.Uint32Var(&f.uid, "uid", 0, "only entries owned by UID")
	fs.Var(&ruleFlag{rules: &f.rules}, "exclude", "exclude entries matching PATTERN (repeatable)")
	fs.Var(&ruleFlag{rules: &f.rules, include: true}, "include", "include entries matching PATTERN (repeatable)")
	fs.StringVar(&f.file, "filter", "", "read filter rules from FILE")
}

// build assembles the filter chain from the flags, falling back to the
// config file for predicate flags that were not set.
func (f *filterFlags) build(cmd *cobra.Command, fc config.FilterConfig, now time.Time) (*filter.Chain, error) {
	opts := filter.Options{
		NameContains: f.name,
		PathContains: f.path,
		Type:         f.typ,
	}
	if f.minSize != "" {
		n, err := filter.ParseSize(f.minSize)
		if err != nil {
			return nil, fmt.Errorf("invalid --min-size: %w", err)
		}
		opts.MinSize = n
	}
	if f.maxSize != "" {
		n, err := filter.ParseSize(f.maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		opts.MaxSize = n
	}
	if f.newerThan != "" {
		age, err := filter.ParseAge(f.newerThan)
		if err != nil {
			return nil, fmt.Errorf("invalid --newer-than: %w", err)
		}
		opts.NotOlderThan = filter.NotOlderThan(now, age)
	}
	if cmd.Flags().Changed("uid") {
		uid := f.uid
		opts.OwnerUID = &uid
	}
	if err := fc.Apply(&opts, cmd.Flags().Changed, now); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	chain := filter.NewChain(opts)
	for _, r := range f.rules {
		add := chain.AddExclude
		if r.include {
			add = chain.AddInclude
		}
		if err := add(r.pattern); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", r.pattern, err)
		}
	}
	if f.file != "" {
		if err := chain.LoadFile(f.file); err != nil {
			return nil, fmt.Errorf("load filter file: %w", err)
		}
	}
	return chain, nil
}

// parseBWLimit resolves --bwlimit, falling back to the config default.
func parseBWLimit(cmd *cobra.Command, flag string, defaults config.DefaultsConfig) (int64, error) {
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		flag = *defaults.BWLimit
	}
	if flag == "" {
		return 0, nil
	}
	n, err := filter.ParseSize(flag)
	if err != nil {
		return 0, fmt.Errorf("invalid --bwlimit: %w", err)
	}
	return int64(n), nil
}
