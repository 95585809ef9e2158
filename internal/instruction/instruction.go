// Package instruction loads the system instruction sent ahead of every
// conversation. The text is a versioned asset: an embedded default that a
// file or an SSM parameter can replace without a code change.
package instruction

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"deploy-chat/internal/integrations/paramstore"
)

//go:embed system_prompt.md
var embedded string

// Source names where an Instruction came from.
type Source string

const (
	SourceEmbedded   Source = "embedded"
	SourceFile       Source = "file"
	SourceParamStore Source = "paramstore"
)

// Instruction is the immutable system text plus a version label for logs.
type Instruction struct {
	Text    string
	Version string
	Source  Source
}

// VersionedGetter is satisfied by *paramstore.Client.
type VersionedGetter interface {
	Get(ctx context.Context, name string) (paramstore.Parameter, error)
}

// Options selects the override. Param wins over File; neither means embedded.
type Options struct {
	File  string
	Param string
	Store VersionedGetter
}

// Default returns the instruction compiled into the binary.
func Default() Instruction {
	return Instruction{Text: embedded, Version: contentVersion(embedded), Source: SourceEmbedded}
}

// Load resolves the instruction once at startup.
func Load(ctx context.Context, opts Options) (Instruction, error) {
	switch {
	case strings.TrimSpace(opts.Param) != "":
		if opts.Store == nil {
			return Instruction{}, errors.New("instruction: parameter store required for SSM override")
		}
		return FromParamStore(ctx, opts.Store, opts.Param)
	case strings.TrimSpace(opts.File) != "":
		return FromFile(opts.File)
	default:
		return Default(), nil
	}
}

func FromFile(path string) (Instruction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Instruction{}, fmt.Errorf("instruction: read %q: %w", path, err)
	}
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return Instruction{}, fmt.Errorf("instruction: %q is empty", path)
	}
	return Instruction{Text: text, Version: contentVersion(text), Source: SourceFile}, nil
}

func FromParamStore(ctx context.Context, store VersionedGetter, name string) (Instruction, error) {
	p, err := store.Get(ctx, name)
	if err != nil {
		return Instruction{}, fmt.Errorf("instruction: load %q: %w", name, err)
	}
	if strings.TrimSpace(p.Value) == "" {
		return Instruction{}, fmt.Errorf("instruction: parameter %q is empty", name)
	}
	return Instruction{
		Text:    p.Value,
		Version: "v" + strconv.FormatInt(p.Version, 10),
		Source:  SourceParamStore,
	}, nil
}

func contentVersion(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "sha256:" + hex.EncodeToString(sum[:])[:12]
}
