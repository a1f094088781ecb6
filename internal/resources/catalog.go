package resources

import (
	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/validation"
	"github.com/baseplate/tracker/internal/storage"
)

var projectStatuses = []string{"planned", "started", "paused", "completed", "canceled"}

func labelConfig(p store.Provider) *resource.Config {
	return &resource.Config{
		Name:     "labels",
		Singular: "label",
		Kind:     resource.KindLabel,
		Model:    p.Model(storage.TableLabels),
		CreateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":    validation.String(1, 64),
			"color":   validation.NullableString(32),
			"team_id": validation.NullableString(64),
		}, "name"),
		UpdateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":  validation.String(1, 64),
			"color": validation.NullableString(32),
		}),
		Relations: []string{"team"},
		Permissions: resource.Permissions{
			Create: canWrite,
			Update: canWriteItem,
			Delete: canDeleteItem,
		},
		DefaultFilter: teamScoped(true),
		SearchFields:  []string{"name"},
		SortField:     "name",
		SortAscending: true,
	}
}

func projectConfig(p store.Provider) *resource.Config {
	return &resource.Config{
		Name:     "projects",
		Singular: "project",
		Kind:     resource.KindProject,
		Model:    p.Model(storage.TableProjects),
		CreateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":        validation.String(1, 128),
			"description": validation.NullableString(10000),
			"status":      validation.Enum(projectStatuses...),
			"team_id":     validation.NullableString(64),
			"lead_id":     validation.NullableString(64),
		}, "name"),
		UpdateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":        validation.String(1, 128),
			"description": validation.NullableString(10000),
			"status":      validation.Enum(projectStatuses...),
			"team_id":     validation.NullableString(64),
			"lead_id":     validation.NullableString(64),
		}),
		Relations: []string{"team", "lead"},
		Permissions: resource.Permissions{
			Create: canWrite,
			Update: canWriteItem,
			Delete: canDeleteItem,
		},
		DefaultFilter:  teamScoped(true),
		SearchFields:   []string{"name", "description"},
		SortableFields: []string{"name", "status"},
	}
}
