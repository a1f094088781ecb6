// Package storage holds the table layout shared by every backend. The
// postgres migrations under postgres/migrations must agree with it.
package storage

import "github.com/baseplate/tracker/internal/core/store"

const (
	TableUsers            = "users"
	TableWorkspaces       = "workspaces"
	TableWorkspaceMembers = "workspace_members"
	TableAPIKeys          = "api_keys"
	TableTeams            = "teams"
	TableTeamMembers      = "team_members"
	TableLabels           = "labels"
	TableProjects         = "projects"
	TableWorkflowStates   = "workflow_states"
	TableWorkItems        = "work_items"
)

// Tables is the full schema, in dependency order.
var Tables = []store.Schema{
	{
		Table:      TableUsers,
		Columns:    []string{"id", "email", "password_hash", "claim_hash", "name", "status", "created_at", "updated_at"},
		Unique:     [][]string{{"email"}},
		Timestamps: true,
		Hidden:     []string{"password_hash", "claim_hash"},
	},
	{
		Table:   TableWorkspaces,
		Columns: []string{"id", "slug", "name", "created_by", "created_at", "updated_at"},
		Relations: map[string]store.Relation{
			"members": {Table: TableWorkspaceMembers, LocalKey: "id", ForeignKey: "workspace_id", Many: true},
		},
		Unique:     [][]string{{"slug"}},
		Timestamps: true,
	},
	{
		Table:   TableWorkspaceMembers,
		Columns: []string{"id", "workspace_id", "user_id", "role", "created_at", "updated_at"},
		Relations: map[string]store.Relation{
			"user":      {Table: TableUsers, LocalKey: "user_id", ForeignKey: "id"},
			"workspace": {Table: TableWorkspaces, LocalKey: "workspace_id", ForeignKey: "id"},
		},
		Unique:     [][]string{{"workspace_id", "user_id"}},
		Timestamps: true,
	},
	{
		Table:      TableAPIKeys,
		Columns:    []string{"id", "workspace_id", "user_id", "name", "key_hash", "expires_at", "last_used_at", "created_at", "updated_at"},
		Unique:     [][]string{{"key_hash"}},
		Timestamps: true,
		Hidden:     []string{"key_hash"},
	},
	{
		Table:   TableTeams,
		Columns: []string{"id", "workspace_id", "name", "key", "description", "private", "created_by", "created_at", "updated_at"},
		Relations: map[string]store.Relation{
			"members":    {Table: TableTeamMembers, LocalKey: "id", ForeignKey: "team_id", Many: true},
			"states":     {Table: TableWorkflowStates, LocalKey: "id", ForeignKey: "team_id", Many: true},
			"work_items": {Table: TableWorkItems, LocalKey: "id", ForeignKey: "team_id", Many: true},
		},
		Unique:     [][]string{{"workspace_id", "key"}},
		Timestamps: true,
	},
	{
		Table:   TableTeamMembers,
		Columns: []string{"id", "workspace_id", "team_id", "user_id", "created_at", "updated_at"},
		Relations: map[string]store.Relation{
			"user": {Table: TableUsers, LocalKey: "user_id", ForeignKey: "id"},
		},
		Unique:     [][]string{{"team_id", "user_id"}},
		Timestamps: true,
	},
	{
		Table:   TableLabels,
		Columns: []string{"id", "workspace_id", "team_id", "name", "color", "created_by", "created_at", "updated_at"},
		Relations: map[string]store.Relation{
			"team": {Table: TableTeams, LocalKey: "team_id", ForeignKey: "id"},
		},
		Timestamps: true,
	},
	{
		Table:   TableProjects,
		Columns: []string{"id", "workspace_id", "team_id", "name", "description", "status", "lead_id", "created_by", "created_at", "updated_at"},
		Relations: map[string]store.Relation{
			"team":       {Table: TableTeams, LocalKey: "team_id", ForeignKey: "id"},
			"lead":       {Table: TableUsers, LocalKey: "lead_id", ForeignKey: "id"},
			"work_items": {Table: TableWorkItems, LocalKey: "id", ForeignKey: "project_id", Many: true},
		},
		Timestamps: true,
	},
	{
		Table:   TableWorkflowStates,
		Columns: []string{"id", "workspace_id", "team_id", "name", "color", "type", "position", "is_default", "created_at", "updated_at"},
		Relations: map[string]store.Relation{
			"team":       {Table: TableTeams, LocalKey: "team_id", ForeignKey: "id"},
			"work_items": {Table: TableWorkItems, LocalKey: "id", ForeignKey: "state_id", Many: true},
		},
		Timestamps: true,
	},
	{
		Table: TableWorkItems,
		Columns: []string{
			"id", "workspace_id", "team_id", "state_id", "parent_id", "project_id", "assignee_id",
			"identifier", "sequence", "title", "description", "priority", "type",
			"created_by", "created_at", "updated_at",
		},
		Relations: map[string]store.Relation{
			"team":     {Table: TableTeams, LocalKey: "team_id", ForeignKey: "id"},
			"state":    {Table: TableWorkflowStates, LocalKey: "state_id", ForeignKey: "id"},
			"parent":   {Table: TableWorkItems, LocalKey: "parent_id", ForeignKey: "id"},
			"children": {Table: TableWorkItems, LocalKey: "id", ForeignKey: "parent_id", Many: true},
			"project":  {Table: TableProjects, LocalKey: "project_id", ForeignKey: "id"},
			"assignee": {Table: TableUsers, LocalKey: "assignee_id", ForeignKey: "id"},
		},
		Unique:     [][]string{{"workspace_id", "identifier"}},
		Timestamps: true,
	},
}
