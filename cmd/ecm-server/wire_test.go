package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/ecm-core/internal/config"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		JWTKey: "k",
		Storage: config.StorageConfig{
			DefaultProvider: "local",
			Local: config.LocalConfig{
				Enabled: true,
				Root:    t.TempDir(),
				BaseURL: "http://localhost:8080/content",
				Secret:  "s3cr3t",
			},
		},
		Signature: config.SignatureConfig{
			Providers: []config.ProviderConfig{
				{Name: "logalty", BaseURL: "https://logalty.example", Priority: 1},
				{Name: "docusign", BaseURL: "https://docusign.example", Priority: 5},
			},
			DefaultProvider: "logalty",
		},
	}
}

func TestBuildExtensions_LocalOnly(t *testing.T) {
	ext, err := buildExtensions(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, ext.local)
	require.Nil(t, ext.s3)

	typ, err := ext.defaultStorageType()
	require.NoError(t, err)
	require.Equal(t, "LOCAL", typ)

	got, ok := ext.registry.Highest(ecm.StoragePoint)
	require.True(t, ok)
	require.Same(t, ext.local, got)

	top, ok := ext.registry.Highest(ecm.SignaturePoint)
	require.True(t, ok)
	require.Equal(t, "docusign", top.(ecm.SignatureProviderExtension).Name())
	require.Equal(t, []string{"docusign", "logalty"}, ranked(ext.registry, ecm.SignaturePoint))
	require.Equal(t, []string{"local"}, ranked(ext.registry, ecm.StoragePoint))
	require.Equal(t, "logalty", ext.signature.DefaultName())
}

func TestBuildExtensions_S3Preferred(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.DefaultProvider = "s3"
	cfg.Storage.S3 = config.S3Config{
		Enabled:         true,
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		Bucket:          "docs",
		Priority:        10,
	}

	ext, err := buildExtensions(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, ext.s3)

	got, ok := ext.registry.Highest(ecm.StoragePoint)
	require.True(t, ok)
	require.Same(t, ext.s3, got)

	typ, err := ext.defaultStorageType()
	require.NoError(t, err)
	require.Equal(t, "S3", typ)
}

func TestBuildExtensions_UnknownDefaultSigner(t *testing.T) {
	cfg := testConfig(t)
	cfg.Signature.DefaultProvider = "yousign"

	_, err := buildExtensions(cfg, zap.NewNop())
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrConfiguration), err.Error())
}

func TestBuildExtensions_BadVendor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Signature.Providers = append(cfg.Signature.Providers, config.ProviderConfig{Name: "broken"})

	_, err := buildExtensions(cfg, zap.NewNop())
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestBuildExtensions_NoStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Local.Enabled = false

	ext, err := buildExtensions(cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = ext.defaultStorageType()
	require.Error(t, err)
}
