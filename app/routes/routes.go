package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"tasktree-go/app/controllers"
)

// RegisterRoutes sets up all routes for the application. /tasks/search is
// registered before /tasks/{taskID} so it is not captured as an id.
func RegisterRoutes(router *mux.Router, taskController *controllers.TaskController) {
	router.HandleFunc("/healthz", taskController.Health).Methods(http.MethodGet)

	router.HandleFunc("/tasks", taskController.GetTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks", taskController.CreateTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/search", taskController.SearchTasks).Methods(http.MethodGet)

	router.HandleFunc("/tasks/{taskID}", taskController.GetTaskByID).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}", taskController.UpdateTask).Methods(http.MethodPatch, http.MethodPut)
	router.HandleFunc("/tasks/{taskID}", taskController.DeleteTask).Methods(http.MethodDelete)

	router.HandleFunc("/tasks/{taskID}/children", taskController.GetChildren).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/move", taskController.MoveTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}/close", taskController.CloseTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}/tree", taskController.GetTree).Methods(http.MethodGet)
}

// NewRouter returns a router with every task route registered.
func NewRouter(taskController *controllers.TaskController) *mux.Router {
	router := mux.NewRouter()
	RegisterRoutes(router, taskController)
	return router
}
