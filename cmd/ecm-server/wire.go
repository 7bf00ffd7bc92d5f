package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/ecm-core/internal/config"
	"github.com/and161185/ecm-core/internal/convert"
	"github.com/and161185/ecm-core/internal/ecm"
	"github.com/and161185/ecm-core/internal/errs"
	"github.com/and161185/ecm-core/internal/esign/httpvendor"
	"github.com/and161185/ecm-core/internal/executor"
	"github.com/and161185/ecm-core/internal/extension"
	"github.com/and161185/ecm-core/internal/provider"
	"github.com/and161185/ecm-core/internal/repository/postgres"
	grpcserver "github.com/and161185/ecm-core/internal/server/grpc"
	"github.com/and161185/ecm-core/internal/service"
	"github.com/and161185/ecm-core/internal/storage/localstore"
	"github.com/and161185/ecm-core/internal/storage/s3store"
)

// storageBackend is a storage extension that reports the location type it writes.
type storageBackend interface {
	ecm.DocumentStorageExtension
	StorageType() string
}

// extensions holds the compiled-in implementations registered at startup.
type extensions struct {
	registry  *extension.Registry
	storage   *provider.Registry[storageBackend]
	signature *provider.Registry[*httpvendor.Client]
	local     *localstore.Store // nil when disabled
	s3        *s3store.Store    // nil when disabled
}

// buildExtensions constructs the enabled storage backends and e-signature
// vendors and registers them against their extension points.
func buildExtensions(cfg *config.Config, log *zap.Logger) (*extensions, error) {
	reg := extension.NewRegistry()
	if err := reg.RegisterPoint(ecm.StoragePoint, extension.Contract[ecm.DocumentStorageExtension]()); err != nil {
		return nil, err
	}
	if err := reg.RegisterPoint(ecm.SignaturePoint, extension.Contract[ecm.SignatureProviderExtension]()); err != nil {
		return nil, err
	}
	out := &extensions{registry: reg}

	var backends []storageBackend
	storagePrio := map[string]int{}
	if cfg.Storage.S3.Enabled {
		st, err := s3store.New(cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		out.s3 = st
		backends = append(backends, st)
		storagePrio[st.Name()] = cfg.Storage.S3.Priority
	}
	if cfg.Storage.Local.Enabled {
		st, err := localstore.New(cfg.Storage.Local, log.Named("localstore"))
		if err != nil {
			return nil, err
		}
		out.local = st
		backends = append(backends, st)
		storagePrio[st.Name()] = cfg.Storage.Local.Priority
	}
	sreg, err := provider.New("storage", backends, cfg.Storage.DefaultProvider, log)
	if err != nil {
		return nil, err
	}
	for _, name := range sreg.Names() {
		b, _ := sreg.Get(name)
		if err := reg.Register(ecm.StoragePoint, b, storagePrio[b.Name()]); err != nil {
			return nil, err
		}
	}
	out.storage = sreg

	var clients []*httpvendor.Client
	sigPrio := map[string]int{}
	for _, pc := range cfg.Signature.Providers {
		c, err := httpvendor.New(pc, nil)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
		sigPrio[c.Name()] = pc.Priority
	}
	vreg, err := provider.New("signature", clients, cfg.Signature.DefaultProvider, log)
	if err != nil {
		return nil, err
	}
	if vreg.DefaultName() != "" {
		if _, err := vreg.Default(); err != nil {
			return nil, fmt.Errorf("default signature provider: %w: %w", errs.ErrConfiguration, err)
		}
	}
	for _, name := range vreg.Names() {
		c, _ := vreg.Get(name)
		if err := reg.Register(ecm.SignaturePoint, c, sigPrio[c.Name()]); err != nil {
			return nil, err
		}
	}
	out.signature = vreg

	log.Info("extensions registered",
		zap.Strings("storage", ranked(reg, ecm.StoragePoint)),
		zap.Strings("signature", ranked(reg, ecm.SignaturePoint)))
	return out, nil
}

// ranked names the implementations of point in resolution order.
func ranked(reg *extension.Registry, point string) []string {
	exts := reg.Extensions(point)
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if n, ok := e.(interface{ Name() string }); ok {
			out = append(out, n.Name())
		}
	}
	return out
}

// defaultStorageType is the location type of the default storage provider.
func (e *extensions) defaultStorageType() (string, error) {
	b, err := e.storage.Default()
	if err != nil {
		return "", err
	}
	return b.StorageType(), nil
}

// services is the set of application services behind the gRPC façade.
type services struct {
	grpcserver.Deps
	Expirer *service.SignatureRequestServiceImpl
	Tokens  *service.TokenServiceImpl
}

func buildServices(cfg *config.Config, db *postgres.DB, ext *extensions, log *zap.Logger) (*services, error) {
	defType, err := ext.defaultStorageType()
	if err != nil {
		return nil, err
	}
	now := time.Now

	docRepo := postgres.NewDocumentRepo(db)
	versions := service.NewDocumentVersionService(postgres.NewVersionRepo(db), now)
	mapper := convert.NewSignatureMapper(cfg.Signature.Defaults, now)

	sigs := service.NewSignatureRequestService(
		postgres.NewSignatureRequestRepo(db),
		postgres.NewDocumentSignatureRepo(db),
		postgres.NewSignatureVerificationRepo(db),
		executor.NewSignatureExecutor(ext.registry),
		mapper,
		now,
		log.Named("signatures"),
	).WithDefaultProvider(ext.signature.DefaultName())

	return &services{
		Deps: grpcserver.Deps{
			Documents:   service.NewDocumentService(docRepo, now),
			Versions:    versions,
			Content:     service.NewContentService(docRepo, versions, executor.NewStorageExecutor(ext.registry), defType),
			Signatures:  sigs,
			Folders:     service.NewFolderService(postgres.NewFolderRepo(db), now),
			Tags:        service.NewTagService(postgres.NewTagRepo(db), docRepo, now),
			Permissions: service.NewPermissionService(postgres.NewPermissionRepo(db), now),
			Signers:     service.NewDocumentSignatureService(postgres.NewDocumentSignatureRepo(db), now),
		},
		Expirer: sigs,
		Tokens:  service.NewTokenService([]byte(cfg.JWTKey), cfg.TokenTTL, now),
	}, nil
}
