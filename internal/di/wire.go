//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/allresumeservices/client-intake/internal/app"
	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/repository"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
)

func InitializeApp() (*app.App, func(), error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		RuntimeInfraSet,
		RepositorySet,
		SecuritySet,
		ServiceSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, func(), error) {
	panic(wire.Build(
		ConfigSet,
		provideOpenDB,
		NewMigrationRunner,
	))
}

func InitializeDraftMaintenance() (*DraftMaintenanceJob, func(), error) {
	panic(wire.Build(
		ConfigSet,
		observability.NewLogger,
		provideOpenDB,
		repository.NewDraftRepository,
		provideIntakeTokenIssuer,
		wire.Bind(new(service.TokenIssuer), new(*security.IntakeTokenIssuer)),
		provideTokenService,
		wire.Bind(new(service.ResumeLinker), new(*service.TokenService)),
		provideIntakeNotifier,
		service.NewDraftMaintenanceService,
		NewDraftMaintenanceJob,
	))
}
