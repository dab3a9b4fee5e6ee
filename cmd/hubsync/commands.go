package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odvcencio/hubsync/internal/hub"
	"github.com/odvcencio/hubsync/internal/models"
)

type statusOutput struct {
	Available    bool                 `json:"available"`
	HubURL       string               `json:"hubUrl"`
	Reason       hub.ProbeReason      `json:"reason"`
	User         *models.User         `json:"user,omitempty"`
	Organization *models.Organization `json:"organization,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the Hub is reachable with the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := statusOutput{HubURL: a.cfg.Hub.URL}
			client, err := a.hubClient(cmd.Context())
			if a.client != nil {
				probe, _ := a.client.Session().LastProbe()
				out.Reason = probe.Reason
			}
			if err != nil {
				_ = a.printJSON(out)
				return err
			}
			out.Available = true
			if user, err := client.Session().ResolveUser(cmd.Context()); err == nil {
				out.User = &user
			}
			if org, err := client.Session().ResolveOrganization(cmd.Context()); err == nil {
				out.Organization = &org
			}
			return a.printJSON(out)
		},
	}
}

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage Hub projects",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the organization's projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			projects, err := client.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(projects)
		},
	}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			project, err := client.CreateProject(cmd.Context(), models.Project{Name: name})
			if err != nil {
				return err
			}
			return a.printJSON(project)
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(list, create)
	return cmd
}

type environmentFlags struct {
	id          string
	jdbcURL     string
	name        string
	description string
	projectID   string
}

func (f *environmentFlags) example() (*models.Environment, error) {
	env := &models.Environment{JdbcURL: f.jdbcURL, Name: f.name, Description: f.description}
	if f.id != "" {
		id, err := uuid.Parse(f.id)
		if err != nil {
			return nil, fmt.Errorf("invalid --id: %w", err)
		}
		env.ID = id
	}
	if f.projectID != "" {
		id, err := uuid.Parse(f.projectID)
		if err != nil {
			return nil, fmt.Errorf("invalid --project-id: %w", err)
		}
		env.Project = &models.Project{ID: id}
	}
	return env, nil
}

func newEnvironmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "environments",
		Aliases: []string{"envs"},
		Short:   "Find, resolve and create Hub environments",
	}

	var listFlags environmentFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List environments matching the given fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			example, err := listFlags.example()
			if err != nil {
				return err
			}
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			envs, err := client.ListEnvironments(cmd.Context(), example)
			if err != nil {
				return err
			}
			return a.printJSON(envs)
		},
	}
	list.Flags().StringVar(&listFlags.jdbcURL, "url", "", "JDBC URL")
	list.Flags().StringVar(&listFlags.name, "name", "", "environment name")
	list.Flags().StringVar(&listFlags.projectID, "project-id", "", "owning project id")

	var resolveFlags environmentFlags
	var createIfMissing bool
	resolve := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve exactly one environment by id or by URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if resolveFlags.id == "" && resolveFlags.jdbcURL == "" {
				return fmt.Errorf("either --id or --url must be specified")
			}
			example, err := resolveFlags.example()
			if err != nil {
				return err
			}
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			env, err := client.ResolveEnvironment(cmd.Context(), example, createIfMissing)
			if err != nil {
				return err
			}
			return a.printJSON(env)
		},
	}
	resolve.Flags().StringVar(&resolveFlags.id, "id", "", "environment id")
	resolve.Flags().StringVar(&resolveFlags.jdbcURL, "url", "", "JDBC URL")
	resolve.Flags().StringVar(&resolveFlags.projectID, "project-id", "", "owning project id")
	resolve.Flags().BoolVar(&createIfMissing, "create", false, "create the environment when nothing matches")

	var createFlags environmentFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an environment under a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := createFlags.example()
			if err != nil {
				return err
			}
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			created, err := client.CreateEnvironment(cmd.Context(), env)
			if err != nil {
				return err
			}
			return a.printJSON(created)
		},
	}
	create.Flags().StringVar(&createFlags.projectID, "project-id", "", "owning project id")
	create.Flags().StringVar(&createFlags.jdbcURL, "url", "", "JDBC URL")
	create.Flags().StringVar(&createFlags.name, "name", "", "environment name (defaults to the URL)")
	create.Flags().StringVar(&createFlags.description, "description", "", "environment description")
	_ = create.MarkFlagRequired("url")

	cmd.AddCommand(list, resolve, create)
	return cmd
}

type scanAttemptOutput struct {
	ProjectID   uuid.UUID       `json:"projectId"`
	ProjectName string          `json:"projectName"`
	Outcome     hub.ScanOutcome `json:"outcome"`
	Error       string          `json:"error,omitempty"`
}

type changeLogScanOutput struct {
	ChangeLog *models.ChangeLog   `json:"changeLog"`
	Degraded  bool                `json:"degraded"`
	Attempts  []scanAttemptOutput `json:"attempts"`
}

func newChangeLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelogs",
		Short: "Register and look up changelogs",
	}

	var projectID string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new changelog under a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project-id: %w", err)
			}
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			log, err := client.CreateChangeLog(cmd.Context(), &models.Project{ID: id})
			if err != nil {
				return err
			}
			return a.printJSON(log)
		},
	}
	create.Flags().StringVar(&projectID, "project-id", "", "owning project id")
	_ = create.MarkFlagRequired("project-id")

	var verbose bool
	get := &cobra.Command{
		Use:   "get <changelog-id>",
		Short: "Find a changelog by id across all projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid changelog id: %w", err)
			}
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			scan, err := client.ScanChangeLog(cmd.Context(), id)
			if err != nil {
				return err
			}
			if verbose {
				return a.printJSON(newChangeLogScanOutput(scan))
			}
			if scan.ChangeLog == nil {
				return fmt.Errorf("changelog %s was not found in any project", id)
			}
			return a.printJSON(scan.ChangeLog)
		},
	}
	get.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each project lookup")

	cmd.AddCommand(create, get)
	return cmd
}

func newChangeLogScanOutput(scan hub.ChangeLogScan) changeLogScanOutput {
	out := changeLogScanOutput{
		ChangeLog: scan.ChangeLog,
		Degraded:  scan.Degraded(),
		Attempts:  make([]scanAttemptOutput, 0, len(scan.Attempts)),
	}
	for _, attempt := range scan.Attempts {
		row := scanAttemptOutput{
			ProjectID:   attempt.Project.ID,
			ProjectName: attempt.Project.Name,
			Outcome:     attempt.Outcome,
		}
		if attempt.Err != nil {
			row.Error = attempt.Err.Error()
		}
		out.Attempts = append(out.Attempts, row)
	}
	return out
}

func newChangesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Report applied changes",
	}

	var envID, file string
	record := &cobra.Command{
		Use:   "record",
		Short: "Replace an environment's applied-change history from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(envID)
			if err != nil {
				return fmt.Errorf("invalid --environment-id: %w", err)
			}
			changes, err := readChanges(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.RecordAppliedChanges(cmd.Context(), &models.Environment{ID: id}, changes); err != nil {
				return err
			}
			return a.printJSON(map[string]any{"environmentId": id, "recorded": len(changes)})
		},
	}
	record.Flags().StringVar(&envID, "environment-id", "", "environment id")
	record.Flags().StringVar(&file, "file", "", `JSON array of applied changes, "-" for stdin`)
	_ = record.MarkFlagRequired("environment-id")
	_ = record.MarkFlagRequired("file")

	cmd.AddCommand(record)
	return cmd
}

func readChanges(stdin io.Reader, path string) ([]models.AppliedChange, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	var changes []models.AppliedChange
	if err := json.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("parse changes: %w", err)
	}
	return changes, nil
}

func newOperationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "Record operations run against an environment",
	}

	var opType, changeLogID, envID string
	var params []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Record a successful operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logID, err := uuid.Parse(changeLogID)
			if err != nil {
				return fmt.Errorf("invalid --changelog-id: %w", err)
			}
			environmentID, err := uuid.Parse(envID)
			if err != nil {
				return fmt.Errorf("invalid --environment-id: %w", err)
			}
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}
			client, err := a.hubClient(cmd.Context())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			env, err := client.GetEnvironment(ctx, environmentID)
			if err != nil {
				return err
			}
			log, err := client.GetChangeLog(ctx, logID)
			if err != nil {
				return err
			}
			if log == nil {
				return fmt.Errorf("changelog %s was not found in any project", logID)
			}
			op, err := client.CreateOperation(ctx, strings.ToUpper(opType), log, env, parameters)
			if err != nil {
				return err
			}
			return a.printJSON(op)
		},
	}
	create.Flags().StringVar(&opType, "type", models.OperationTypeUpdate, "operation type (UPDATE, ROLLBACK, SYNC, DROP_ALL)")
	create.Flags().StringVar(&changeLogID, "changelog-id", "", "changelog id")
	create.Flags().StringVar(&envID, "environment-id", "", "environment id")
	create.Flags().StringArrayVar(&params, "param", nil, "operation parameter as key=value (repeatable)")
	_ = create.MarkFlagRequired("changelog-id")
	_ = create.MarkFlagRequired("environment-id")

	cmd.AddCommand(create)
	return cmd
}

func parseParams(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hubsync version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.out, version)
			return err
		},
	}
}
