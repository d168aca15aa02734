package domain

// TaskStatistics agrega las tareas de un propietario.
type TaskStatistics struct {
	TotalHoursSpent float64 `json:"total_hours_spent"`
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	TodoTasks       int     `json:"todo_tasks"`
}

// Normalize redondea el total de horas a 2 decimales.
func (s TaskStatistics) Normalize() TaskStatistics {
	s.TotalHoursSpent = RoundTo(s.TotalHoursSpent, 2)
	return s
}

// ComputeStatistics calcula las estadísticas en memoria. Lo usan los
// adaptadores que no agregan en la base de datos.
func ComputeStatistics(tasks []*Task) TaskStatistics {
	var s TaskStatistics
	for _, t := range tasks {
		s.TotalTasks++
		s.TotalHoursSpent += t.TimeSpent
		switch t.Status {
		case TaskCompleted:
			s.CompletedTasks++
		case TaskInProgress:
			s.InProgressTasks++
		case TaskTodo:
			s.TodoTasks++
		}
	}
	return s.Normalize()
}
