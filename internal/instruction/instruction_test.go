package instruction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"deploy-chat/internal/integrations/paramstore"
)

type fakeStore struct {
	param paramstore.Parameter
	err   error
	name  string
}

func (f *fakeStore) Get(_ context.Context, name string) (paramstore.Parameter, error) {
	f.name = name
	return f.param, f.err
}

func TestDefault_IsEmbeddedPrompt(t *testing.T) {
	in := Default()
	require.Equal(t, SourceEmbedded, in.Source)
	require.True(t, strings.HasPrefix(in.Text, "You are the Deploy AI Assistant"))
	require.Contains(t, in.Text, "CRITICAL GUARDRAILS")
	require.Contains(t, in.Text, "hello@deploy.finance")
	require.True(t, strings.HasPrefix(in.Version, "sha256:"))
	require.Equal(t, in.Version, Default().Version)
}

func TestLoad_NoOverrideUsesDefault(t *testing.T) {
	in, err := Load(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, Default(), in)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("Be brief."), 0o600))

	in, err := Load(context.Background(), Options{File: path})
	require.NoError(t, err)
	require.Equal(t, "Be brief.", in.Text)
	require.Equal(t, SourceFile, in.Source)
	require.NotEqual(t, Default().Version, in.Version)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(context.Background(), Options{File: filepath.Join(t.TempDir(), "missing.md")})
	require.ErrorContains(t, err, "read")

	empty := filepath.Join(t.TempDir(), "empty.md")
	require.NoError(t, os.WriteFile(empty, []byte(" \n"), 0o600))
	_, err = Load(context.Background(), Options{File: empty})
	require.ErrorContains(t, err, "is empty")
}

func TestLoad_ParamStoreWinsOverFile(t *testing.T) {
	store := &fakeStore{param: paramstore.Parameter{Name: "/p", Value: "From SSM", Version: 3}}
	in, err := Load(context.Background(), Options{File: "/does/not/matter", Param: "/p", Store: store})
	require.NoError(t, err)
	require.Equal(t, Instruction{Text: "From SSM", Version: "v3", Source: SourceParamStore}, in)
	require.Equal(t, "/p", store.name)
}

func TestLoad_ParamStoreErrors(t *testing.T) {
	_, err := Load(context.Background(), Options{Param: "/p"})
	require.ErrorContains(t, err, "parameter store required")

	_, err = Load(context.Background(), Options{Param: "/p", Store: &fakeStore{err: errors.New("denied")}})
	require.ErrorContains(t, err, "denied")

	_, err = Load(context.Background(), Options{Param: "/p", Store: &fakeStore{param: paramstore.Parameter{Value: "  "}}})
	require.ErrorContains(t, err, "is empty")
}
