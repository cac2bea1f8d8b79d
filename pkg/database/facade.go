// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

// FacadeInterface defines the Facade interface for unit testing and mocking
type FacadeInterface interface {
	// GetDeployment returns the Deployment Facade interface
	GetDeployment() DeploymentFacadeInterface
	// GetEnvironment returns the Environment Facade interface
	GetEnvironment() EnvironmentFacadeInterface
	// GetRepository returns the Repository Facade interface
	GetRepository() RepositoryFacadeInterface
	// GetCluster returns the Cluster Facade interface
	GetCluster() ClusterFacadeInterface
	// GetUser returns the User Facade interface
	GetUser() UserFacadeInterface
	// GetJob returns the Job Facade interface
	GetJob() JobFacadeInterface
}

// Facade is the unified entry point for database operations, aggregating all sub-Facades
type Facade struct {
	Deployment  DeploymentFacadeInterface
	Environment EnvironmentFacadeInterface
	Repository  RepositoryFacadeInterface
	Cluster     ClusterFacadeInterface
	User        UserFacadeInterface
	Job         JobFacadeInterface
}

// NewFacade creates a new Facade instance
func NewFacade() *Facade {
	return &Facade{
		Deployment:  NewDeploymentFacade(),
		Environment: NewEnvironmentFacade(),
		Repository:  NewRepositoryFacade(),
		Cluster:     NewClusterFacade(),
		User:        NewUserFacade(),
		Job:         NewJobFacade(),
	}
}

// GetDeployment returns the Deployment Facade interface
func (f *Facade) GetDeployment() DeploymentFacadeInterface {
	return f.Deployment
}

// GetEnvironment returns the Environment Facade interface
func (f *Facade) GetEnvironment() EnvironmentFacadeInterface {
	return f.Environment
}

// GetRepository returns the Repository Facade interface
func (f *Facade) GetRepository() RepositoryFacadeInterface {
	return f.Repository
}

// GetCluster returns the Cluster Facade interface
func (f *Facade) GetCluster() ClusterFacadeInterface {
	return f.Cluster
}

// GetUser returns the User Facade interface
func (f *Facade) GetUser() UserFacadeInterface {
	return f.User
}

// GetJob returns the Job Facade interface
func (f *Facade) GetJob() JobFacadeInterface {
	return f.Job
}

// Global default Facade instance
var defaultFacade = NewFacade()

// GetFacade returns the default Facade instance
func GetFacade() FacadeInterface {
	return defaultFacade
}

// SetFacade replaces the default Facade instance (tests only).
func SetFacade(f FacadeInterface) {
	if facade, ok := f.(*Facade); ok {
		defaultFacade = facade
		return
	}
	defaultFacade = &Facade{
		Deployment:  f.GetDeployment(),
		Environment: f.GetEnvironment(),
		Repository:  f.GetRepository(),
		Cluster:     f.GetCluster(),
		User:        f.GetUser(),
		Job:         f.GetJob(),
	}
}
