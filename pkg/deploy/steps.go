// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-Deploy/pkg/authorization"
	"github.com/AMD-AGI/Primus-Deploy/pkg/database/model"
	"github.com/AMD-AGI/Primus-Deploy/pkg/executil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/gitutil"
	"github.com/AMD-AGI/Primus-Deploy/pkg/haproxy"
)

// GlobalOpsLockFile blocks every non-admin deployment while it exists.
const GlobalOpsLockFile = "/tmp/global_ops_lock"

// staleDeploymentAge is how long a competing deployment may stay in a
// non-terminal state before being expired.
const staleDeploymentAge = 20 * time.Minute

// protectedEnvironments are subject to the business-hours rules.
var protectedEnvironments = []string{"prod"}

func (e *Engine) stepCheckConfiguration() Step {
	return Step{
		Description: fmt.Sprintf("Check configuration for deployment %d", e.deployID),
		Run: func(sc *StepContext) error {
			hostname, _ := os.Hostname()
			sc.Logf("Deployment handled by %s", hostname)

			startDate := e.now().UTC()
			e.view.DateStartDeploy = &startDate
			if err := e.facade.GetDeployment().SetDateStartDeploy(sc.Context(), e.view.ID, startDate); err != nil {
				return err
			}

			if e.view.EnvironmentID == nil || e.view.Environment == nil {
				sc.Log(model.NewLogEntryWithSeverity("No environment ID for this deployment, can not proceed", model.SeverityError))
				return nil
			}
			if e.view.UserID == nil || e.view.User == nil {
				sc.Log(model.NewLogEntryWithSeverity("No user ID associated with this deployment, can not proceed", model.SeverityError))
				return nil
			}
			sc.Logf("Found configuration: username %s, repo %s, environment %s, branch %s, commit %s",
				e.view.User.Username, e.view.Environment.Repository.Name, e.view.Environment.Name,
				e.view.Branch, e.view.Commit)

			for _, server := range e.view.DeactivatedServers() {
				sc.Log(model.NewLogEntryWithSeverity(
					fmt.Sprintf("Server %s is deactivated, will be ignored for this deployment.", server.Name),
					model.SeverityWarn))
			}

			targetServers := e.view.TargetServers()
			if len(targetServers) == 0 {
				sc.Log(model.NewLogEntryWithSeverity(
					"This deployment has no target servers (the target cluster is empty).", model.SeverityError))
				return nil
			}
			if len(targetServers) == len(e.view.DeactivatedServers()) {
				sc.Log(model.NewLogEntryWithSeverity("All target servers are deactivated.", model.SeverityError))
				return nil
			}

			if e.view.Status != model.DeploymentStatusQueued {
				sc.Log(model.NewLogEntryWithSeverity(fmt.Sprintf(
					"This deployment has the status %s (expected QUEUED). "+
						"It was probably interrupted (by a deployer restart?), "+
						"or there is another deeper issue (several deployer instances using the same queue? TTR exceeded?). "+
						"In any case, aborting here.", e.view.Status), model.SeverityError))
			}
			return nil
		},
	}
}

func (e *Engine) stepCheckDeployAllowed(account *model.User, environmentID int64, environmentName string) Step {
	return Step{
		Description: fmt.Sprintf("Check whether the user '%s' is allowed to deploy", account.Username),
		Run: func(sc *StepContext) error {
			if _, err := os.Stat(GlobalOpsLockFile); err == nil && !authorization.HasPermission(account, authorization.SuperAdmin()) {
				sc.Log(model.NewLogEntryWithSeverity(
					"Denied: your beloved Platform Ops team is blocking all deployments until further notice.",
					model.SeverityError))
				return nil
			}

			if authorization.HasPermission(account, authorization.Deploy(environmentID)) {
				return nil
			}

			if authorization.HasPermission(account, authorization.DeployBusinessHours(environmentID)) {
				if isProtectedEnvironment(environmentName) {
					if denied := e.businessHoursDenial(environmentName); denied != "" {
						sc.Log(model.NewLogEntryWithSeverity(denied, model.SeverityError))
						return nil
					}
				}
				return nil
			}

			sc.Log(model.NewLogEntryWithSeverity("Denied (insufficient permissions)", model.SeverityError))
			return nil
		},
	}
}

func isProtectedEnvironment(name string) bool {
	for _, env := range protectedEnvironments {
		if name == env {
			return true
		}
	}
	return false
}

// businessHoursDenial returns a denial message, or empty when deploying is
// allowed right now: Monday to Thursday 08:00-18:30, Friday before 14:00,
// never during week-ends or bank holidays.
func (e *Engine) businessHoursDenial(environmentName string) string {
	today := e.now()
	const maxHourFriday = 14
	if today.Weekday() == time.Friday && today.Hour() >= maxHourFriday {
		return fmt.Sprintf("Denied: no deployment allowed during Fridays after 2pm in environment '%s'", environmentName)
	}
	if today.Weekday() == time.Saturday || today.Weekday() == time.Sunday {
		return fmt.Sprintf("Denied: no deployment allowed during week-ends in environment '%s'", environmentName)
	}
	const minHour = 8
	const maxHour = 18
	const maxMinutes = 30
	if today.Hour() < minHour || (today.Hour() == maxHour && today.Minute() >= maxMinutes) || today.Hour() > maxHour {
		return fmt.Sprintf("Denied: no deployment allowed before 8:00 or after 18:30 in environment '%s'", environmentName)
	}
	for _, holiday := range fixedHolidays(today.Year()) {
		if today.Month() == holiday.month && today.Day() == holiday.day {
			return fmt.Sprintf("Denied: no deployment allowed today in environment '%s'", environmentName)
		}
	}
	return ""
}

type monthDay struct {
	month time.Month
	day   int
}

// fixedHolidays lists bank holidays (and sometimes the day before) during
// which production deployments are denied.
func fixedHolidays(int) []monthDay {
	return []monthDay{
		{time.January, 1},    // New Year's Day
		{time.May, 1},        // Labor Day
		{time.May, 8},        // WWII Victory Day
		{time.July, 14},      // Bastille Day
		{time.November, 1},   // All Saint's Day
		{time.November, 11},  // Armistice Day
		{time.December, 24},  // Christmas Eve
		{time.December, 25},  // Christmas Day
		{time.December, 26},  // No deployments just after Christmas either
		{time.December, 31},  // New Year's Eve
	}
}

func (e *Engine) stepCheckServersAvailability(environmentName string) Step {
	return Step{
		Description: "Check that the servers are available",
		Run: func(sc *StepContext) error {
			serverIDs := make([]int64, 0)
			for _, server := range e.view.TargetServers() {
				serverIDs = append(serverIDs, server.ID)
			}
			others, err := e.facade.GetDeployment().ListConflicting(sc.Context(), e.view.ID, serverIDs)
			if err != nil {
				return err
			}
			for _, other := range others {
				if other.DateStartDeploy != nil && other.DateStartDeploy.Add(staleDeploymentAge).Before(e.now().UTC()) {
					sc.Log(model.NewLogEntryWithSeverity(fmt.Sprintf(
						"Deployment (id %d, repo %s, env %s) already in progress since more than 20 minutes ago, marking it as failed and going on...",
						other.ID, other.RepositoryName, other.EnvironmentName), model.SeverityWarn))
					entry := model.NewLogEntryWithSeverity("Timeout", model.SeverityError)
					entry.DeployID = other.ID
					if err := e.facade.GetDeployment().AppendLogEntry(sc.Context(), entry); err != nil {
						return err
					}
					if err := e.facade.GetDeployment().EndDeployment(sc.Context(), other.ID, model.DeploymentStatusFailed, e.now().UTC()); err != nil {
						return err
					}
					continue
				}
				if strings.HasPrefix(environmentName, "beta") || strings.HasPrefix(environmentName, "prod") {
					sc.Log(model.NewLogEntryWithSeverity(fmt.Sprintf(
						"Conflict with deployment (id %d, repo %s, env %s)",
						other.ID, other.RepositoryName, other.EnvironmentName), model.SeverityError))
					return nil
				}
				if other.Branch == e.view.Branch && other.Commit == e.view.Commit {
					sc.Log(model.NewLogEntryWithSeverity(fmt.Sprintf(
						"Conflict with deployment (id %d) for the same branch (%s) and commit (%s)",
						other.ID, e.view.Branch, e.view.Commit), model.SeverityError))
					return nil
				}
			}
			return nil
		},
	}
}

func (e *Engine) stepCloneRepo(workingDirectory string, environment *model.Environment) Step {
	return Step{
		Description: fmt.Sprintf("Clone repository %s", environment.Repository.Name),
		Run: func(sc *StepContext) error {
			if _, err := os.Stat(workingDirectory); err == nil {
				sc.Logf("Repository already cloned, skipping.")
				return nil
			}
			remoteURL := gitutil.BuildRepoURL(environment.Repository.Name, environment.Repository.GitServer)
			_, err := gitutil.LockRepositoryClone(remoteURL, workingDirectory)
			return err
		},
	}
}

func (e *Engine) stepUpdateRepo(localRepoPath string, repo *gitutil.WriteRepository) Step {
	commit := e.view.Commit
	return Step{
		Description: fmt.Sprintf("Switch to commit %s", commit),
		Run: func(sc *StepContext) error {
			if _, err := os.Stat(localRepoPath); err != nil {
				sc.Log(model.NewLogEntryWithSeverity(
					fmt.Sprintf("Git repository not found at %s", localRepoPath), model.SeverityError))
				return nil
			}
			// Refresh the refs unless a fetch is already in progress; the
			// fetch lock is disjoint from the write lock we already hold.
			err := gitutil.LockRepositoryFetch(localRepoPath, false, func(fetchRepo *gitutil.FetchRepository) error {
				sc.Logf("Update objects (git fetch)")
				return fetchRepo.Fetch()
			})
			if err != nil && err != gitutil.ErrAlreadyLocked {
				return err
			}
			sc.Logf("Reset local copy to commit %s", commit)
			return repo.SwitchTo(commit)
		},
	}
}

func (e *Engine) stepDetectArtifact(localRepoPath string) Step {
	return Step{
		Description: "Detect artifact source",
		Run: func(sc *StepContext) error {
			environment := e.view.Environment
			var artifact Artifact
			var err error
			if e.detector != nil {
				artifact, err = e.detector(localRepoPath, environment.Repository.GitServer,
					environment.Repository.Name, e.view.Commit, environment.Name)
			} else {
				err = ErrNoArtifactDetected
			}
			if err == ErrNoArtifactDetected || artifact == nil {
				// Default artifact: just copy the repo.
				artifact = NewGitArtifact(localRepoPath)
			} else if err != nil {
				return err
			}
			sc.Logf("Artifact type: %s", artifact.Description())
			e.artifact = artifact
			return nil
		},
	}
}

func (e *Engine) stepObtainArtifact() Step {
	return Step{
		Description: "Obtain a local copy of the artifact to deploy",
		Run: func(sc *StepContext) error {
			_, err := e.artifact.Obtain()
			return err
		},
	}
}

func (e *Engine) stepRunAndDeletePredeploy(workingDirectory string) Step {
	return Step{
		Description: "Run 'predeploy.sh'",
		Run: func(sc *StepContext) error {
			res := executil.ExecScript(workingDirectory, "predeploy.sh", []string{e.view.Environment.Name, e.view.Commit})
			sc.LogAll(executil.Capture("predeploy.sh", res))
			sc.Logf("%s", workingDirectory)
			rm := executil.ExecCmd([]string{"rm", "-f", "predeploy.sh"}, workingDirectory, executil.DefaultTimeout)
			sc.LogAll(executil.Capture("delete predeploy.sh", rm))
			return nil
		},
	}
}

func (e *Engine) stepRunLocalTests(localRepoPath string, server *model.Server, mailReportTo []string) Step {
	return Step{
		Description: "Run local tests (execute tests/run_local_tests.sh)",
		Run: func(sc *StepContext) error {
			host := executil.HostFromServer(server, e.view.Environment.RemoteUser)
			report := e.runTest(localRepoPath, host, true, mailReportTo)
			if report == nil {
				sc.Logf("No script 'tests/run_local_tests.sh', skipping.")
				return nil
			}
			sc.Logf("%s", report.Format())
			if report.Failed() {
				sc.Log(model.NewLogEntryWithSeverity("Tests failed.", model.SeverityError))
			}
			return nil
		},
	}
}

func (e *Engine) stepRunRemoteTests(server *model.Server, mailReportTo []string) Step {
	return Step{
		Description: "Run remote tests (execute tests/run_tests.sh on the remote server)",
		Run: func(sc *StepContext) error {
			host := executil.HostFromServer(server, e.view.Environment.RemoteUser)
			report := e.runTest("", host, false, mailReportTo)
			if report == nil {
				sc.Logf("No script 'tests/run_tests.sh', skipping.")
				return nil
			}
			sc.Logf("%s", report.Format())
			if report.Failed() {
				sc.Log(model.NewLogEntryWithSeverity("Tests failed on the remote server.", model.SeverityError))
			}
			return nil
		},
	}
}

func (e *Engine) stepParallelSync(destinationPath string, servers []*model.Server) Step {
	environment := e.view.Environment
	names := make([]string, 0, len(servers))
	for _, server := range servers {
		names = append(names, server.Name)
	}
	return Step{
		Description: fmt.Sprintf("Sync to hosts %s", strings.Join(names, ", ")),
		Run: func(sc *StepContext) error {
			syncOptions := environment.SyncOptions
			if syncOptions == "" {
				syncOptions = "-az --delete"
			}
			if !strings.HasSuffix(destinationPath, "/") {
				destinationPath += "/"
			}

			type syncResult struct {
				entries []*model.LogEntry
			}
			results := make([]syncResult, len(servers))
			sem := make(chan struct{}, MaxParallelSync)
			var wg sync.WaitGroup
			for i, server := range servers {
				wg.Add(1)
				go func(i int, server *model.Server) {
					defer wg.Done()
					sem <- struct{}{}
					defer func() { <-sem }()
					host := executil.HostFromServer(server, environment.RemoteUser)
					results[i] = syncResult{entries: e.syncOneHost(destinationPath, syncOptions, host)}
				}(i, server)
			}
			wg.Wait()
			for _, result := range results {
				sc.LogAll(result.entries)
			}
			sc.Logf("Copy on all servers complete.")
			return nil
		},
	}
}

// syncOneHost pushes the artifact to one host and rewrites its release manifest.
func (e *Engine) syncOneHost(destinationPath, syncOptions string, host executil.Host) []*model.LogEntry {
	var entries []*model.LogEntry

	previous := GetReleaseStatus(host, destinationPath, releaseProbeTimeout)
	entries = append(entries, model.NewLogEntry(
		fmt.Sprintf("On %s, previous release: %s", host.Name, previous.FormatCommit())))
	entries = append(entries, model.NewLogEntry(
		fmt.Sprintf("Copying to %s@%s:%s", host.Username, host.Name, destinationPath)))

	mkdir := executil.RunCmdBySSH(host, []string{"mkdir", "-p", destinationPath}, executil.DefaultTimeout)
	entries = append(entries, executil.Capture("mkdir", mkdir)...)

	destination := fmt.Sprintf("%s@%s:%s", host.Username, host.Name, destinationPath)
	cmd := append([]string{"rsync", "-e", fmt.Sprintf("ssh -p %d", host.Port), "--exclude=.git"},
		strings.Fields(syncOptions)...)
	cmd = append(cmd, e.artifact.LocalPath(), destination)
	rsync := executil.ExecCmd(cmd, "", executil.DefaultTimeout)
	entries = append(entries, executil.Capture(executil.QuoteCommand(cmd), rsync)...)

	contents := gitutil.ReleaseFileContents(e.view.Branch, e.view.Commit, e.now().UTC(), destinationPath)
	writeManifest := executil.RunCmdBySSH(host, []string{
		"echo", fmt.Sprintf("'%s'", contents), ">", path.Join(destinationPath, gitutil.ReleaseFileName),
	}, executil.DefaultTimeout)
	entries = append(entries, executil.Capture("copy release file", writeManifest)...)
	return entries
}

func (e *Engine) stepRelease(server *model.Server, releasePath string) Step {
	environment := e.view.Environment
	return Step{
		Description: fmt.Sprintf("Release on %s", server.Name),
		Run: func(sc *StepContext) error {
			host := executil.HostFromServer(server, environment.RemoteUser)
			switch environment.Repository.DeployMethod {
			case model.DeployMethodInplace:
				// Nothing to do, the release path is the production folder.
				return nil
			case model.DeployMethodSymlink:
				// Atomic link change thanks to rename with 'mv -T'.
				remoteRepoPath := environment.RemoteRepoPath()
				cmd := []string{
					"cd", remoteRepoPath, "&&",
					"ln", "-s", releasePath, "tmp-link", "&&",
					"mv", "-T", "tmp-link", path.Join(remoteRepoPath, environment.ProductionFolder()),
				}
				res := executil.RunCmdBySSH(host, cmd, executil.DefaultTimeout)
				sc.LogAll(executil.Capture("symlink", res))
				return nil
			default:
				return fmt.Errorf("unsupported release method: %s", environment.Repository.DeployMethod)
			}
		},
	}
}

func (e *Engine) stepRunAndDeleteDeploy(server *model.Server) Step {
	environment := e.view.Environment
	return Step{
		Description: fmt.Sprintf("Run 'deploy.sh' on %s", server.Name),
		Run: func(sc *StepContext) error {
			host := executil.HostFromServer(server, environment.RemoteUser)
			res := executil.ExecScriptRemote(host, environment.TargetPath, "deploy.sh",
				[]string{environment.Name, host.Name, e.view.Commit})
			sc.LogAll(executil.Capture("Run 'deploy.sh'", res))
			rm := executil.RunCmdBySSH(host, []string{"cd", environment.TargetPath, "&&", "rm", "-f", "deploy.sh"}, executil.DefaultTimeout)
			sc.LogAll(executil.Capture("delete 'deploy.sh'", rm))
			return nil
		},
	}
}

func clusterNames(clusters []*model.Cluster) string {
	names := make([]string, 0, len(clusters))
	for _, cluster := range clusters {
		names = append(names, cluster.Name)
	}
	return strings.Join(names, ", ")
}

func (e *Engine) stepEnsureClustersUp(clusters []*model.Cluster) Step {
	return Step{
		Description: fmt.Sprintf("Ensure all servers in clusters %s are up", clusterNames(clusters)),
		Run: func(sc *StepContext) error {
			for _, cluster := range clusters {
				if cluster.HAProxyHost == nil {
					continue
				}
				keys := make([]string, 0, len(cluster.Servers))
				for _, asso := range cluster.Servers {
					key := ""
					if asso.HAProxyKey != nil {
						key = *asso.HAProxyKey
					}
					keys = append(keys, key)
				}
				if err := e.clusterAction(*cluster.HAProxyHost, keys, "UP", haproxy.ActionEnable); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (e *Engine) stepDisableClusters(clusters []*model.Cluster) Step {
	return e.stepClusterAction(clusters, haproxy.ActionDisable)
}

func (e *Engine) stepEnableClusters(clusters []*model.Cluster) Step {
	return e.stepClusterAction(clusters, haproxy.ActionEnable)
}

func (e *Engine) stepClusterAction(clusters []*model.Cluster, action haproxy.Action) Step {
	verb := "Enable"
	if action == haproxy.ActionDisable {
		verb = "Disable"
	}
	return Step{
		Description: fmt.Sprintf("%s clusters %s", verb, clusterNames(clusters)),
		Run: func(sc *StepContext) error {
			for _, cluster := range clusters {
				if cluster.HAProxyHost == nil {
					sc.Logf("Cluster %s has no HAProxy configured, skipping.", cluster.Name)
					continue
				}
				var descriptions []string
				keys := make([]string, 0, len(cluster.Servers))
				for _, asso := range cluster.Servers {
					key := ""
					if asso.HAProxyKey != nil {
						key = *asso.HAProxyKey
					}
					keys = append(keys, key)
					if asso.Server != nil {
						descriptions = append(descriptions, fmt.Sprintf("%s (%s)", asso.Server.Name, key))
					}
				}
				sc.Logf("%s cluster %s (servers %s)", verb, cluster.Name, strings.Join(descriptions, ", "))
				if err := e.clusterAction(*cluster.HAProxyHost, keys, "", action); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// loadRepoConfigurationFile reads deploy.json from the mirror, empty when absent.
func (e *Engine) loadRepoConfigurationFile(ctx context.Context, localRepoPath string) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	err := e.runStep(ctx, Step{
		Description: "Load deploy.json",
		Run: func(sc *StepContext) error {
			filename := filepath.Join(localRepoPath, "deploy.json")
			data, err := os.ReadFile(filename)
			if err != nil {
				sc.Logf("No 'deploy.json' file found in the repository, skipping.")
				return nil
			}
			return json.Unmarshal(data, &out)
		},
	})
	return out, err
}

// TestReport is the outcome of a local or remote test script.
type TestReport struct {
	RepositoryName  string
	EnvironmentName string
	Server          string
	Branch          string
	Commit          string
	ExitCode        int
	Stdout          string
	Stderr          string
}

// Failed reports whether the test script exited non-zero.
func (r *TestReport) Failed() bool {
	return r.ExitCode != 0
}

// Format renders the report for logs and mails.
func (r *TestReport) Format() string {
	wasSuccessful := "success :)"
	if r.Failed() {
		wasSuccessful = "failed :("
	}
	server := ""
	if r.Server != "" {
		server = fmt.Sprintf("Server %s", r.Server)
	}
	return fmt.Sprintf(`Tests result: %s

Repository %s - environment %s (branch %s)
Commit %s
%s

stdout:
%s

stderr:
%s
`, wasSuccessful, r.RepositoryName, r.EnvironmentName, r.Branch, r.Commit, server, r.Stdout, r.Stderr)
}

// runTest executes the local or remote test script. Returns nil when the
// script does not exist. Failed reports are mailed to the owners.
func (e *Engine) runTest(localRepoPath string, host executil.Host, local bool, mailReportTo []string) *TestReport {
	environment := e.view.Environment
	var res executil.Result
	if local {
		scriptPath := filepath.Join(localRepoPath, "tests/run_local_tests.sh")
		if _, err := os.Stat(scriptPath); err != nil {
			return nil
		}
		res = executil.ExecScript(localRepoPath, "tests/run_local_tests.sh",
			[]string{environment.Name, host.Name, e.view.Branch, e.view.Commit})
	} else {
		if !executil.RemoteFileExists(path.Join(environment.TargetPath, "tests/run_tests.sh"), host) {
			return nil
		}
		res = executil.ExecScriptRemote(host, environment.TargetPath, "tests/run_tests.sh",
			[]string{environment.Name, host.Name, e.view.Branch, e.view.Commit})
	}

	report := &TestReport{
		RepositoryName:  environment.Repository.Name,
		EnvironmentName: environment.Name,
		Server:          host.Name,
		Branch:          e.view.Branch,
		Commit:          e.view.Commit,
		ExitCode:        res.ExitCode,
		Stdout:          res.Stdout,
		Stderr:          res.Stderr,
	}
	if report.Failed() && len(mailReportTo) > 0 && e.mailer != nil {
		e.mailer.Send(e.cfg.MailSender, mailReportTo,
			fmt.Sprintf("Tests failed for %s (%s)", environment.Repository.Name, environment.Name),
			report.Format(), nil)
	}
	return report
}
