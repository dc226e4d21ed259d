package domain

import "context"

// Entity is anything a Repository can store.
type Entity interface {
	Key() string
}

// Repository is the keyed CRUD store for one entity type.
// GetAll returns entities in storage (insertion) order.
type Repository[T Entity] interface {
	GetByID(ctx context.Context, id string) (T, error)
	GetAll(ctx context.Context) ([]T, error)
	Add(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id string) error
}

// PipelineDefinitionService supplies pipeline templates.
type PipelineDefinitionService interface {
	GetByID(ctx context.Context, id string) (PipelineDefinition, error)
	GetAll(ctx context.Context) ([]PipelineDefinition, error)
	Update(ctx context.Context, def PipelineDefinition) (PipelineDefinition, error)
}

// MaterialDefinitionService supplies material templates.
type MaterialDefinitionService interface {
	GetByID(ctx context.Context, id string) (MaterialDefinition, error)
	GetAll(ctx context.Context) ([]MaterialDefinition, error)
	Update(ctx context.Context, def MaterialDefinition) (MaterialDefinition, error)
	GetAllFromPipelineDefinition(ctx context.Context, pipelineDefinitionID string) ([]MaterialDefinition, error)
}

// Operation names the mutation that produced a Change.
type Operation string

const (
	OperationAdd    Operation = "add"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Change is emitted after an entity is persisted.
type Change struct {
	EntityType string    `json:"entityType"`
	Operation  Operation `json:"operation"`
	Entity     any       `json:"entity"`
}

// Notifier routes changes to interested observers.
type Notifier interface {
	Publish(change Change)
}
