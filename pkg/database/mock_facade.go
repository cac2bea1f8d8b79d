// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
)

// MockFacade is an in-memory implementation of FacadeInterface for testing.
type MockFacade struct {
	DeploymentMock  *MockDeploymentFacade
	EnvironmentMock *MockEnvironmentFacade
	RepositoryMock  *MockRepositoryFacade
	ClusterMock     *MockClusterFacade
	UserMock        *MockUserFacade
	JobMock         *MockJobFacade
}

// NewMockFacade creates a MockFacade with empty stores.
func NewMockFacade() *MockFacade {
	return &MockFacade{
		DeploymentMock:  NewMockDeploymentFacade(),
		EnvironmentMock: NewMockEnvironmentFacade(),
		RepositoryMock:  NewMockRepositoryFacade(),
		ClusterMock:     NewMockClusterFacade(),
		UserMock:        NewMockUserFacade(),
		JobMock:         NewMockJobFacade(),
	}
}

func (m *MockFacade) GetDeployment() DeploymentFacadeInterface   { return m.DeploymentMock }
func (m *MockFacade) GetEnvironment() EnvironmentFacadeInterface { return m.EnvironmentMock }
func (m *MockFacade) GetRepository() RepositoryFacadeInterface   { return m.RepositoryMock }
func (m *MockFacade) GetCluster() ClusterFacadeInterface         { return m.ClusterMock }
func (m *MockFacade) GetUser() UserFacadeInterface               { return m.UserMock }
func (m *MockFacade) GetJob() JobFacadeInterface                 { return m.JobMock }

// MockDeploymentFacade keeps deployments in memory.
type MockDeploymentFacade struct {
	mu          sync.Mutex
	nextID      int64
	Deployments map[int64]*model.Deployment
	// Conflicting is returned by ListConflicting regardless of arguments.
	Conflicting []*model.Deployment
}

func NewMockDeploymentFacade() *MockDeploymentFacade {
	return &MockDeploymentFacade{nextID: 1, Deployments: map[int64]*model.Deployment{}}
}

func (f *MockDeploymentFacade) CreateDeployment(_ context.Context, deployment *model.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	deployment.ID = f.nextID
	f.nextID++
	f.Deployments[deployment.ID] = deployment
	return nil
}

func (f *MockDeploymentFacade) GetDeployment(_ context.Context, id int64) (*model.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Deployments[id], nil
}

func (f *MockDeploymentFacade) UpdateStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deployment, ok := f.Deployments[id]; ok {
		deployment.Status = status
	}
	return nil
}

func (f *MockDeploymentFacade) SetDateStartDeploy(_ context.Context, id int64, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deployment, ok := f.Deployments[id]; ok {
		deployment.DateStartDeploy = &date
	}
	return nil
}

func (f *MockDeploymentFacade) EndDeployment(_ context.Context, id int64, status string, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deployment, ok := f.Deployments[id]; ok {
		deployment.Status = status
		deployment.DateEndDeploy = &date
	}
	return nil
}

func (f *MockDeploymentFacade) AppendLogEntry(_ context.Context, entry *model.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deployment, ok := f.Deployments[entry.DeployID]; ok {
		deployment.LogEntries = append(deployment.LogEntries, entry)
	}
	return nil
}

func (f *MockDeploymentFacade) ListConflicting(context.Context, int64, []int64) ([]*model.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Deployment(nil), f.Conflicting...), nil
}

func (f *MockDeploymentFacade) ListActiveByEnvironment(_ context.Context, environmentID int64) ([]*model.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Deployment
	for _, deployment := range f.Deployments {
		if deployment.EnvironmentID != nil && *deployment.EnvironmentID == environmentID &&
			!model.IsTerminalDeploymentStatus(deployment.Status) {
			out = append(out, deployment)
		}
	}
	return out, nil
}

func (f *MockDeploymentFacade) ListRecent(_ context.Context, _ []int64, limit int) ([]*model.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Deployment
	for _, deployment := range f.Deployments {
		out = append(out, deployment)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *MockDeploymentFacade) ListByRepository(_ context.Context, repositoryName string, _ []int64, limit int) ([]*model.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Deployment
	for _, deployment := range f.Deployments {
		if deployment.RepositoryName == repositoryName {
			out = append(out, deployment)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *MockDeploymentFacade) DistinctCompleteCommits(_ context.Context, environmentIDs []int64, commits []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	envSet := map[int64]struct{}{}
	for _, id := range environmentIDs {
		envSet[id] = struct{}{}
	}
	commitSet := map[string]struct{}{}
	for _, commit := range commits {
		commitSet[commit] = struct{}{}
	}
	seen := map[string]struct{}{}
	var out []string
	for _, deployment := range f.Deployments {
		if deployment.Status != model.DeploymentStatusComplete || deployment.EnvironmentID == nil {
			continue
		}
		if _, ok := envSet[*deployment.EnvironmentID]; !ok {
			continue
		}
		if _, ok := commitSet[deployment.Commit]; !ok {
			continue
		}
		if _, dup := seen[deployment.Commit]; !dup {
			seen[deployment.Commit] = struct{}{}
			out = append(out, deployment.Commit)
		}
	}
	return out, nil
}

func (f *MockDeploymentFacade) MaxQueuedDates(context.Context) (map[int64]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]time.Time{}
	for _, deployment := range f.Deployments {
		if deployment.EnvironmentID == nil {
			continue
		}
		if current, ok := out[*deployment.EnvironmentID]; !ok || deployment.QueuedDate.After(current) {
			out[*deployment.EnvironmentID] = deployment.QueuedDate
		}
	}
	return out, nil
}

// MockEnvironmentFacade keeps environments in memory.
type MockEnvironmentFacade struct {
	mu           sync.Mutex
	nextID       int64
	Environments map[int64]*model.Environment
}

func NewMockEnvironmentFacade() *MockEnvironmentFacade {
	return &MockEnvironmentFacade{nextID: 1, Environments: map[int64]*model.Environment{}}
}

func (f *MockEnvironmentFacade) CreateEnvironment(_ context.Context, env *model.Environment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env.ID == 0 {
		env.ID = f.nextID
		f.nextID++
	}
	f.Environments[env.ID] = env
	return nil
}

func (f *MockEnvironmentFacade) UpdateEnvironment(_ context.Context, env *model.Environment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Environments[env.ID] = env
	return nil
}

func (f *MockEnvironmentFacade) DeleteEnvironment(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Environments, id)
	return nil
}

func (f *MockEnvironmentFacade) GetEnvironment(_ context.Context, id int64) (*model.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Environments[id], nil
}

func (f *MockEnvironmentFacade) ListEnvironments(_ context.Context, ids []int64) ([]*model.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Environment
	for _, env := range f.Environments {
		if ids == nil || containsInt64(ids, env.ID) {
			out = append(out, env)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *MockEnvironmentFacade) ListByRepository(_ context.Context, repositoryID int64) ([]*model.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Environment
	for _, env := range f.Environments {
		if env.RepositoryID == repositoryID {
			out = append(out, env)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *MockEnvironmentFacade) ListByRepositoryName(_ context.Context, repositoryName string) ([]*model.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Environment
	for _, env := range f.Environments {
		if env.Repository != nil && env.Repository.Name == repositoryName {
			out = append(out, env)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *MockEnvironmentFacade) ListParents(_ context.Context, repositoryID int64, envOrder int, deployBranch string) ([]*model.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Environment
	for _, env := range f.Environments {
		if env.RepositoryID == repositoryID && env.EnvOrder == envOrder-1 && env.DeployBranch == deployBranch {
			out = append(out, env)
		}
	}
	return out, nil
}

// MockRepositoryFacade keeps repositories in memory.
type MockRepositoryFacade struct {
	mu           sync.Mutex
	nextID       int64
	Repositories map[int64]*model.Repository
}

func NewMockRepositoryFacade() *MockRepositoryFacade {
	return &MockRepositoryFacade{nextID: 1, Repositories: map[int64]*model.Repository{}}
}

func (f *MockRepositoryFacade) CreateRepository(_ context.Context, repo *model.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repo.ID == 0 {
		repo.ID = f.nextID
		f.nextID++
	}
	f.Repositories[repo.ID] = repo
	return nil
}

func (f *MockRepositoryFacade) UpdateRepository(_ context.Context, repo *model.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Repositories[repo.ID] = repo
	return nil
}

func (f *MockRepositoryFacade) DeleteRepository(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Repositories, id)
	return nil
}

func (f *MockRepositoryFacade) GetRepository(_ context.Context, id int64) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Repositories[id], nil
}

func (f *MockRepositoryFacade) GetRepositoryByName(_ context.Context, name string) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, repo := range f.Repositories {
		if repo.Name == name {
			return repo, nil
		}
	}
	return nil, nil
}

func (f *MockRepositoryFacade) ListRepositories(_ context.Context, _ []int64) ([]*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Repository
	for _, repo := range f.Repositories {
		out = append(out, repo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockClusterFacade keeps clusters and servers in memory.
type MockClusterFacade struct {
	mu           sync.Mutex
	nextID       int64
	Clusters     map[int64]*model.Cluster
	Servers      map[int64]*model.Server
	Environments []*model.Environment
	SoftDeleted  []int64
}

func NewMockClusterFacade() *MockClusterFacade {
	return &MockClusterFacade{nextID: 1, Clusters: map[int64]*model.Cluster{}, Servers: map[int64]*model.Server{}}
}

func (f *MockClusterFacade) CreateCluster(_ context.Context, cluster *model.Cluster) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cluster.ID == 0 {
		cluster.ID = f.nextID
		f.nextID++
	}
	f.Clusters[cluster.ID] = cluster
	return nil
}

func (f *MockClusterFacade) UpdateCluster(_ context.Context, cluster *model.Cluster) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clusters[cluster.ID] = cluster
	return nil
}

func (f *MockClusterFacade) DeleteCluster(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Clusters, id)
	return nil
}

func (f *MockClusterFacade) GetCluster(_ context.Context, id int64) (*model.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Clusters[id], nil
}

func (f *MockClusterFacade) GetClusterByInventoryKey(_ context.Context, key string) (*model.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cluster := range f.Clusters {
		if cluster.InventoryKey != nil && *cluster.InventoryKey == key {
			return cluster, nil
		}
	}
	return nil, nil
}

func (f *MockClusterFacade) ListClusters(context.Context) ([]*model.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Cluster
	for _, cluster := range f.Clusters {
		out = append(out, cluster)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *MockClusterFacade) ListClustersWithInventoryKeyNotIn(_ context.Context, keys []string) ([]*model.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keySet := map[string]struct{}{}
	for _, key := range keys {
		keySet[key] = struct{}{}
	}
	var out []*model.Cluster
	for _, cluster := range f.Clusters {
		if cluster.InventoryKey == nil {
			continue
		}
		if _, ok := keySet[*cluster.InventoryKey]; !ok {
			out = append(out, cluster)
		}
	}
	return out, nil
}

func (f *MockClusterFacade) ReplaceClusterServers(_ context.Context, clusterID int64, assos []*model.ClusterServerAssociation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cluster, ok := f.Clusters[clusterID]
	if !ok {
		return nil
	}
	for _, asso := range assos {
		asso.ClusterID = clusterID
		if asso.Server == nil {
			asso.Server = f.Servers[asso.ServerID]
		}
	}
	cluster.Servers = assos
	return nil
}

func (f *MockClusterFacade) SoftDeleteCluster(_ context.Context, clusterID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cluster, ok := f.Clusters[clusterID]
	if !ok {
		return nil
	}
	cluster.Name = "old-" + cluster.Name
	cluster.InventoryKey = nil
	cluster.UpdatedAt = nil
	f.SoftDeleted = append(f.SoftDeleted, clusterID)
	return nil
}

func (f *MockClusterFacade) CreateServer(_ context.Context, server *model.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if server.ID == 0 {
		server.ID = f.nextID
		f.nextID++
	}
	f.Servers[server.ID] = server
	return nil
}

func (f *MockClusterFacade) UpdateServer(_ context.Context, server *model.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Servers[server.ID] = server
	return nil
}

func (f *MockClusterFacade) DeleteServer(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Servers, id)
	return nil
}

func (f *MockClusterFacade) GetServer(_ context.Context, id int64) (*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Servers[id], nil
}

func (f *MockClusterFacade) GetServerByName(_ context.Context, name string) (*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, server := range f.Servers {
		if server.Name == name {
			return server, nil
		}
	}
	return nil, nil
}

func (f *MockClusterFacade) GetServerByInventoryKey(_ context.Context, key string) (*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, server := range f.Servers {
		if server.InventoryKey != nil && *server.InventoryKey == key {
			return server, nil
		}
	}
	return nil, nil
}

func (f *MockClusterFacade) ListServers(context.Context) ([]*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Server
	for _, server := range f.Servers {
		out = append(out, server)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *MockClusterFacade) ListEnvironmentsByServer(context.Context, int64) ([]*model.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Environment(nil), f.Environments...), nil
}

// MockUserFacade keeps users and roles in memory.
type MockUserFacade struct {
	mu     sync.Mutex
	nextID int64
	Users  map[int64]*model.User
	Roles  map[int64]*model.Role
}

func NewMockUserFacade() *MockUserFacade {
	return &MockUserFacade{nextID: 1, Users: map[int64]*model.User{}, Roles: map[int64]*model.Role{}}
}

func (f *MockUserFacade) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == 0 {
		user.ID = f.nextID
		f.nextID++
	}
	f.Users[user.ID] = user
	return nil
}

func (f *MockUserFacade) UpdateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[user.ID] = user
	return nil
}

func (f *MockUserFacade) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Users, id)
	return nil
}

func (f *MockUserFacade) GetUser(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Users[id], nil
}

func (f *MockUserFacade) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, nil
}

func (f *MockUserFacade) GetUserBySessionToken(_ context.Context, token string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.Users {
		if user.SessionToken != nil && *user.SessionToken == token {
			return user, nil
		}
	}
	return nil, nil
}

func (f *MockUserFacade) ListUsers(context.Context) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.User
	for _, user := range f.Users {
		out = append(out, user)
	}
	return out, nil
}

func (f *MockUserFacade) IssueSessionToken(_ context.Context, userID int64, token string, issuedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.Users[userID]; ok {
		user.SessionToken = &token
		user.TokenIssuedAt = &issuedAt
	}
	return nil
}

func (f *MockUserFacade) ReplaceUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.Users[userID]; ok {
		user.Roles = nil
		for _, roleID := range roleIDs {
			if role, ok := f.Roles[roleID]; ok {
				user.Roles = append(user.Roles, role)
			}
		}
	}
	return nil
}

func (f *MockUserFacade) CreateRole(_ context.Context, role *model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if role.ID == 0 {
		role.ID = f.nextID
		f.nextID++
	}
	f.Roles[role.ID] = role
	return nil
}

func (f *MockUserFacade) UpdateRole(_ context.Context, role *model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Roles[role.ID] = role
	return nil
}

func (f *MockUserFacade) DeleteRole(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Roles, id)
	return nil
}

func (f *MockUserFacade) GetRole(_ context.Context, id int64) (*model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Roles[id], nil
}

func (f *MockUserFacade) ListRoles(context.Context) ([]*model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Role
	for _, role := range f.Roles {
		out = append(out, role)
	}
	return out, nil
}

// MockJobFacade is an in-memory tube honoring the reservation semantics.
type MockJobFacade struct {
	mu     sync.Mutex
	nextID int64
	Jobs   map[int64]*model.DeploymentJob
}

func NewMockJobFacade() *MockJobFacade {
	return &MockJobFacade{nextID: 1, Jobs: map[int64]*model.DeploymentJob{}}
}

func (f *MockJobFacade) PutJob(_ context.Context, job *model.DeploymentJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.ID = f.nextID
	f.nextID++
	f.Jobs[job.ID] = job
	return nil
}

func (f *MockJobFacade) ReleaseExpiredReservations(_ context.Context, tube string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var released int64
	for _, job := range f.Jobs {
		if job.Tube != tube || job.State != model.JobStateReserved || job.ReservedAt == nil {
			continue
		}
		if job.ReservedAt.Add(time.Duration(job.TTRSeconds) * time.Second).Before(now) {
			job.State = model.JobStateReady
			job.ReservedAt = nil
			job.ReservedBy = ""
			job.Releases++
			job.ReadyAt = now
			released++
		}
	}
	return released, nil
}

func (f *MockJobFacade) TryReserveJob(_ context.Context, tube, workerID string, now time.Time) (*model.DeploymentJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *model.DeploymentJob
	for _, job := range f.Jobs {
		if job.Tube != tube || job.State != model.JobStateReady || job.ReadyAt.After(now) {
			continue
		}
		if best == nil || job.ID < best.ID {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}
	best.State = model.JobStateReserved
	reservedAt := now
	best.ReservedAt = &reservedAt
	best.ReservedBy = workerID
	copied := *best
	return &copied, nil
}

func (f *MockJobFacade) DeleteJob(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Jobs, id)
	return nil
}

func (f *MockJobFacade) ReleaseJob(_ context.Context, id int64, delay time.Duration, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.Jobs[id]; ok {
		job.State = model.JobStateReady
		job.ReservedAt = nil
		job.ReservedBy = ""
		job.Releases++
		job.ReadyAt = now.Add(delay)
	}
	return nil
}

func (f *MockJobFacade) GetJob(_ context.Context, id int64) (*model.DeploymentJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.Jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, nil
}

func (f *MockJobFacade) CountReadyJobs(_ context.Context, tube string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, job := range f.Jobs {
		if job.Tube == tube && job.State == model.JobStateReady {
			count++
		}
	}
	return count, nil
}

func containsInt64(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
