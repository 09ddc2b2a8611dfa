package tools

// FetchEventsInput defines input for the fetchEvents tool.
type FetchEventsInput struct {
	EventID int `json:"event_id,omitempty" jsonschema_description:"Event ID to fetch, 0 or omitted for all events"`
}

// SearchEventsInput defines input for the searchEvents tool.
type SearchEventsInput struct {
	Query string `json:"query" jsonschema_description:"Keyword or topic to search events for"`
}

// FetchDepartmentsInput defines input for the fetchDepartments tool.
type FetchDepartmentsInput struct {
	DepartmentID int `json:"department_id,omitempty" jsonschema_description:"Department ID to fetch, 0 or omitted for all departments"`
}

// SearchDepartmentsInput defines input for the searchDepartments tool.
type SearchDepartmentsInput struct {
	Query string `json:"query" jsonschema_description:"Name or description keyword to search departments for"`
}

// FetchBusRoutesInput defines input for the fetchBusRoutes tool.
type FetchBusRoutesInput struct {
	RouteID int `json:"route_id,omitempty" jsonschema_description:"Route ID to fetch, 0 or omitted for all routes"`
}

// SearchBusRoutesInput defines input for the searchBusRoutes tool.
type SearchBusRoutesInput struct {
	Query string `json:"query" jsonschema_description:"Route name, route number, start point, or end point to search for"`
}

// RoutesByStatusInput defines input for the getRoutesByStatus tool.
type RoutesByStatusInput struct {
	Status string `json:"status" jsonschema_description:"Route status to filter by, e.g. 'On Time', 'Delayed', 'Cancelled'"`
}

// RoutesByTimeRangeInput defines input for the getRoutesByTimeRange tool.
type RoutesByTimeRangeInput struct {
	StartTime string `json:"start_time" jsonschema_description:"Range start in HH:MM format, e.g. '07:00'"`
	EndTime   string `json:"end_time" jsonschema_description:"Range end in HH:MM format, e.g. '08:00'"`
}

// FetchCafeteriaMenuInput defines input for the fetchCafeteriaMenu tool.
type FetchCafeteriaMenuInput struct {
	CafeteriaID int `json:"cafeteria_id,omitempty" jsonschema_description:"Cafeteria ID, 0 or omitted for the main cafeteria"`
}

// SearchMenuItemsInput defines input for the searchMenuItems tool.
type SearchMenuItemsInput struct {
	Query       string `json:"query" jsonschema_description:"Menu item name, ingredient, or category to search for"`
	CafeteriaID int    `json:"cafeteria_id,omitempty" jsonschema_description:"Cafeteria ID to search in, 0 or omitted for the main cafeteria"`
}

// ExamResultsInput defines input for the getUserExamResults tool.
// The user identity comes from the request context, not from the model.
type ExamResultsInput struct{}

// UserDataInput defines input for the getUserData tool.
// The user identity comes from the request context, not from the model.
type UserDataInput struct{}
