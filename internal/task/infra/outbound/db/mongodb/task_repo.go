package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	// --- Importaciones del dominio y compartidas ---
	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedMongo "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/mongodb"
	sharedQuery "github.com/davicafu/pomotasks/internal/shared/infra/platform/query"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const TasksCollection = "tasks"

var sortableFields = map[string]bool{"created_at": true, "updated_at": true, "title": true}

// TaskRepoMongoDB implementa la interfaz TaskRepository para MongoDB.
// Las transacciones requieren un replica set.
type TaskRepoMongoDB struct {
	client     *mongo.Client
	tasksColl  *mongo.Collection
	outboxColl *mongo.Collection
}

// NewTaskRepoMongoDB es el constructor del repositorio.
func NewTaskRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*TaskRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &TaskRepoMongoDB{
		client:     client,
		tasksColl:  db.Collection(TasksCollection),
		outboxColl: db.Collection(sharedMongo.OutboxCollection),
	}, nil
}

// EnsureIndexes crea el índice de listado por propietario.
func (r *TaskRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.tasksColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoTask struct {
	ID             string    `bson:"_id"`
	OwnerID        string    `bson:"owner_id"`
	Title          string    `bson:"title"`
	Status         string    `bson:"status"`
	AllocatedHours float64   `bson:"allocated_hours"`
	TimeSpent      float64   `bson:"time_spent"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// --- CRUD Transaccional ---

// inTransaction ejecuta fn dentro de una transacción de sesión.
func (r *TaskRepoMongoDB) inTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

func (r *TaskRepoMongoDB) Create(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	// La transacción asegura que ambas inserciones (tarea y evento) sean atómicas.
	return r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.tasksColl.InsertOne(sessCtx, toMongoTask(t)); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return sharedMongo.InsertOutbox(sessCtx, r.outboxColl, evt)
	})
}

func (r *TaskRepoMongoDB) Update(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	return r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		filter := bson.M{"_id": t.ID.String(), "owner_id": t.OwnerID.String()}
		update := bson.M{"$set": bson.M{
			"title":           t.Title,
			"status":          string(t.Status),
			"allocated_hours": t.AllocatedHours,
			"time_spent":      t.TimeSpent,
			"updated_at":      t.UpdatedAt,
		}}

		res, err := r.tasksColl.UpdateOne(sessCtx, filter, update)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return taskDomain.ErrTaskNotFound
		}
		return sharedMongo.InsertOutbox(sessCtx, r.outboxColl, evt)
	})
}

func (r *TaskRepoMongoDB) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	return r.inTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		res, err := r.tasksColl.DeleteOne(sessCtx, bson.M{"_id": id.String()})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return taskDomain.ErrTaskNotFound
		}
		return sharedMongo.InsertOutbox(sessCtx, r.outboxColl, evt)
	})
}

// --- Lectura ---

func (r *TaskRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	var mt mongoTask
	err := r.tasksColl.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&mt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, taskDomain.ErrTaskNotFound
		}
		return nil, err
	}
	return fromMongoTask(&mt)
}

func (r *TaskRepoMongoDB) ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, sort sharedQuery.Sort) ([]*taskDomain.Task, error) {
	filter, err := criteriaToMongoFilter(criteria)
	if err != nil {
		return nil, err
	}

	field := sort.Field
	if !sortableFields[field] {
		field = "created_at"
	}
	sortDir := 1 // Ascendente por defecto
	if sort.Desc {
		sortDir = -1 // Descendente
	}
	opts := options.Find().SetSort(bson.D{{Key: field, Value: sortDir}, {Key: "_id", Value: 1}})

	cursor, err := r.tasksColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*taskDomain.Task
	for cursor.Next(ctx) {
		var mt mongoTask
		if err := cursor.Decode(&mt); err != nil {
			return nil, err
		}
		t, err := fromMongoTask(&mt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, cursor.Err()
}

// statusCount cuenta los documentos del grupo con el estado indicado.
func statusCount(status taskDomain.TaskStatus) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(status)}}, 1, 0}}}
}

// Statistics agrega con un pipeline las tareas del propietario.
func (r *TaskRepoMongoDB) Statistics(ctx context.Context, ownerID uuid.UUID) (taskDomain.TaskStatistics, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID.String()}}},
		{{Key: "$group", Value: bson.M{
			"_id":               nil,
			"total_hours_spent": bson.M{"$sum": "$time_spent"},
			"total_tasks":       bson.M{"$sum": 1},
			"completed_tasks":   statusCount(taskDomain.TaskCompleted),
			"in_progress_tasks": statusCount(taskDomain.TaskInProgress),
			"todo_tasks":        statusCount(taskDomain.TaskTodo),
		}}},
	}

	cursor, err := r.tasksColl.Aggregate(ctx, pipeline)
	if err != nil {
		return taskDomain.TaskStatistics{}, fmt.Errorf("task statistics: %w", err)
	}
	defer cursor.Close(ctx)

	var row struct {
		TotalHoursSpent float64 `bson:"total_hours_spent"`
		TotalTasks      int     `bson:"total_tasks"`
		CompletedTasks  int     `bson:"completed_tasks"`
		InProgressTasks int     `bson:"in_progress_tasks"`
		TodoTasks       int     `bson:"todo_tasks"`
	}
	// Sin documentos no hay grupo: todo a cero.
	if cursor.Next(ctx) {
		if err := cursor.Decode(&row); err != nil {
			return taskDomain.TaskStatistics{}, err
		}
	}
	if err := cursor.Err(); err != nil {
		return taskDomain.TaskStatistics{}, err
	}

	return taskDomain.TaskStatistics{
		TotalHoursSpent: row.TotalHoursSpent,
		TotalTasks:      row.TotalTasks,
		CompletedTasks:  row.CompletedTasks,
		InProgressTasks: row.InProgressTasks,
		TodoTasks:       row.TodoTasks,
	}.Normalize(), nil
}

// --- Helpers de Mapeo y Conversión ---

func toMongoTask(t *taskDomain.Task) *mongoTask {
	return &mongoTask{
		ID: t.ID.String(), OwnerID: t.OwnerID.String(), Title: t.Title, Status: string(t.Status),
		AllocatedHours: t.AllocatedHours, TimeSpent: t.TimeSpent, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func fromMongoTask(mt *mongoTask) (*taskDomain.Task, error) {
	id, err := uuid.Parse(mt.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in task document: %w", err)
	}
	owner, err := uuid.Parse(mt.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner UUID in task document: %w", err)
	}
	return &taskDomain.Task{
		ID: id, OwnerID: owner, Title: mt.Title, Status: taskDomain.TaskStatus(mt.Status),
		AllocatedHours: mt.AllocatedHours, TimeSpent: mt.TimeSpent,
		CreatedAt: mt.CreatedAt.UTC(), UpdatedAt: mt.UpdatedAt.UTC(),
	}, nil
}

func criteriaToMongoFilter(criteria sharedDomain.Criteria) (bson.D, error) {
	filter := bson.D{}
	if criteria == nil {
		return filter, nil
	}

	for _, c := range criteria.ToConditions() {
		// Mapeo de operadores genéricos a operadores de MongoDB
		switch c.Op {
		case sharedDomain.OpEq:
			filter = append(filter, bson.E{Key: c.Field, Value: bson.M{"$eq": c.Value}})
		case sharedDomain.OpIContains:
			// QuoteMeta convierte el texto en literal; la 'i' ignora mayúsculas.
			pattern := regexp.QuoteMeta(fmt.Sprint(c.Value))
			filter = append(filter, bson.E{Key: c.Field, Value: bson.M{"$regex": pattern, "$options": "i"}})
		default:
			return nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return filter, nil
}

var _ taskDomain.TaskRepository = (*TaskRepoMongoDB)(nil)
