package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nick-dorsch/teamtasks/internal/analytics"
	"github.com/nick-dorsch/teamtasks/internal/service"
	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

const statusHelp = "Status (To Do|In Progress|Done)"
const priorityHelp = "Priority (Low|Medium|High)"

type handlers struct {
	svc     *service.Service
	staging *StagingManager
	now     func() time.Time
}

// NewServer creates a new MCP server backed by the service layer. Every
// tool acts on behalf of actor_email.
func NewServer(svc *service.Service) *server.MCPServer {
	s := server.NewMCPServer("TeamTasks", "0.1.0")
	h := &handlers{svc: svc, staging: NewStagingManager(), now: time.Now}

	actor := mcp.WithString("actor_email", mcp.Description("Email of the user the call acts for"), mcp.Required())

	// Tasks
	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List the tasks visible to the actor. Admins see every task; members see tasks assigned to them or to their teams."),
		actor,
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against title and description")),
		mcp.WithString("status", mcp.Description("Filter by exact status")),
		mcp.WithString("priority", mcp.Description("Filter by exact priority")),
	), h.listTasks)

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single visible task with its comments."),
		actor,
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), h.getTask)

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task. Admin only."),
		actor,
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("status", mcp.Description(statusHelp+", defaults to To Do")),
		mcp.WithString("priority", mcp.Description(priorityHelp+", defaults to Medium")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD or RFC 3339)")),
		mcp.WithArray("assigned_to_emails", mcp.Description("Assignee emails"), mcp.WithStringItems()),
		mcp.WithString("assigned_to_email", mcp.Description("Single assignee email, kept for older clients")),
		mcp.WithString("team_id", mcp.Description("Team the task belongs to; its members are assigned when no assignees are given")),
	), h.createTask)

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update fields of a task. Only the given fields change. Admin only."),
		actor,
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New "+statusHelp)),
		mcp.WithString("priority", mcp.Description("New "+priorityHelp)),
		mcp.WithString("due_date", mcp.Description("New due date; empty string clears it")),
		mcp.WithArray("assigned_to_emails", mcp.Description("Replacement assignee emails"), mcp.WithStringItems()),
		mcp.WithString("team_id", mcp.Description("New team ID; empty string detaches the task")),
	), h.updateTask)

	s.AddTool(mcp.NewTool("update_task_status",
		mcp.WithDescription("Move a task to another status column. Admin only."),
		actor,
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description(statusHelp), mcp.Required()),
	), h.updateTaskStatus)

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task and its comments. Admin only."),
		actor,
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), h.deleteTask)

	s.AddTool(mcp.NewTool("add_comment",
		mcp.WithDescription("Comment on a task visible to the actor."),
		actor,
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("text", mcp.Description("Comment text")),
	), h.addComment)

	// Teams
	s.AddTool(mcp.NewTool("list_teams",
		mcp.WithDescription("List teams. Admins see all teams, members their own."),
		actor,
	), h.listTeams)

	s.AddTool(mcp.NewTool("stage_team_task",
		mcp.WithDescription("Propose a task for a team that is about to be created. Staged tasks are created by the next create_team call in the same session."),
		actor,
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description(priorityHelp)),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD or RFC 3339)")),
		mcp.WithArray("assigned_to_emails", mcp.Description("Assignees; defaults to every team member"), mcp.WithStringItems()),
		mcp.WithString("session_id", mcp.Description("Session ID for staging (defaults to 'default').")),
	), h.stageTeamTask)

	s.AddTool(mcp.NewTool("list_staged_team_tasks",
		mcp.WithDescription("List the team tasks staged in a session."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), h.listStagedTeamTasks)

	s.AddTool(mcp.NewTool("create_team",
		mcp.WithDescription("Create a team together with the tasks staged in the session. Admin only."),
		actor,
		mcp.WithString("name", mcp.Description("Team name"), mcp.Required()),
		mcp.WithArray("members", mcp.Description("Member emails"), mcp.WithStringItems()),
		mcp.WithString("session_id", mcp.Description("Session ID whose staged tasks to create (defaults to 'default').")),
	), h.createTeam)

	// Activity and analytics
	s.AddTool(mcp.NewTool("list_activity",
		mcp.WithDescription("Read the activity log, newest first. Admin only."),
		actor,
		mcp.WithString("search", mcp.Description("Case-insensitive text matched against action and actor name")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries")),
	), h.listActivity)

	s.AddTool(mcp.NewTool("get_analytics",
		mcp.WithDescription("Status counts, per-assignee counts, due timeline and overdue count over the actor's visible tasks."),
		actor,
	), h.getAnalytics)

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (h *handlers) actor(ctx context.Context, request mcp.CallToolRequest) (*models.User, error) {
	email := mcp.ParseString(request, "actor_email", "")
	if email == "" {
		return nil, fmt.Errorf("actor_email is required")
	}
	return h.svc.Users.Ensure(ctx, email)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

// stringList accepts a JSON array of strings or a comma-separated string.
func stringList(args map[string]any, key string) ([]string, bool) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	case []string:
		return v, true
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}, true
		}
		return strings.Split(v, ","), true
	}
	return nil, false
}

func parseDate(s string) (*time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid due_date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return &t, nil
}

func recordFrom(args map[string]any) (models.TaskRecord, error) {
	rec := models.TaskRecord{}
	rec.Title, _ = args["title"].(string)
	rec.Description, _ = args["description"].(string)
	rec.Status, _ = args["status"].(string)
	rec.Priority, _ = args["priority"].(string)
	if due, _ := args["due_date"].(string); due != "" {
		d, err := parseDate(due)
		if err != nil {
			return rec, err
		}
		rec.DueDate = d
	}
	if emails, ok := stringList(args, "assigned_to_emails"); ok {
		rec.AssignedToEmails = emails
	}
	rec.AssignedToEmail, _ = args["assigned_to_email"].(string)
	if teamID, _ := args["team_id"].(string); teamID != "" {
		rec.TeamID = &teamID
	}
	return rec, nil
}

func (h *handlers) listTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filters := visibility.Filters{
		Query:    mcp.ParseString(request, "query", ""),
		Status:   mcp.ParseString(request, "status", ""),
		Priority: mcp.ParseString(request, "priority", ""),
	}
	res, err := h.svc.Tasks.Visible(ctx, visibility.ViewerOf(u), filters)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"tasks": res.Tasks})
}

func (h *handlers) getTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := h.svc.Tasks.Get(ctx, u, mcp.ParseString(request, "id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t)
}

func (h *handlers) createTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := recordFrom(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := h.svc.Tasks.CreateTask(ctx, u, rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t)
}

func (h *handlers) updateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := arguments(request)
	patch := models.TaskPatch{}
	if title, ok := args["title"].(string); ok {
		patch.Title = &title
	}
	if description, ok := args["description"].(string); ok {
		patch.Description = &description
	}
	if status, ok := args["status"].(string); ok {
		st := models.TaskStatus(status)
		patch.Status = &st
	}
	if priority, ok := args["priority"].(string); ok {
		p := models.TaskPriority(priority)
		patch.Priority = &p
	}
	if due, ok := args["due_date"].(string); ok {
		if due == "" {
			patch.ClearDueDate = true
		} else {
			d, err := parseDate(due)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			patch.DueDate = d
		}
	}
	if emails, ok := stringList(args, "assigned_to_emails"); ok {
		patch.AssignedToEmails = emails
	}
	if teamID, ok := args["team_id"].(string); ok {
		patch.TeamID = &teamID
	}

	t, err := h.svc.Tasks.UpdateTask(ctx, u, mcp.ParseString(request, "id", ""), patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t)
}

func (h *handlers) updateTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := mcp.ParseString(request, "id", "")
	status := models.TaskStatus(mcp.ParseString(request, "status", ""))

	t, err := h.svc.Tasks.UpdateStatus(ctx, u, id, status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task '%s' moved to %s", t.Title, t.Status)), nil
}

func (h *handlers) deleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.svc.Tasks.DeleteTask(ctx, u, mcp.ParseString(request, "id", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Task deleted successfully"), nil
}

func (h *handlers) addComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := h.svc.Tasks.AddComment(ctx, u, mcp.ParseString(request, "id", ""), mcp.ParseString(request, "text", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c)
}

func (h *handlers) listTeams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	teams, err := h.svc.Teams.List(ctx, u)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"teams": teams})
}

func (h *handlers) stageTeamTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !u.IsAdmin() {
		return mcp.NewToolResultError(fmt.Sprintf("%v: admin role required", service.ErrForbidden)), nil
	}

	rec, err := recordFrom(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(rec.Title) == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	rec.TeamID = nil

	sessionID := mcp.ParseString(request, "session_id", "default")
	n := h.staging.AddTask(sessionID, rec)
	return mcp.NewToolResultText(fmt.Sprintf("Task '%s' staged for session '%s' (%d staged). Stage another or call 'create_team' to apply.", rec.Title, sessionID, n)), nil
}

func (h *handlers) listStagedTeamTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(request, "session_id", "default")
	return jsonResult(map[string]any{"tasks": h.staging.Peek(sessionID)})
}

func (h *handlers) createTeam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	members, _ := stringList(arguments(request), "members")
	sessionID := mcp.ParseString(request, "session_id", "default")

	staged := h.staging.GetAndClear(sessionID)
	team, tasks, err := h.svc.Teams.Create(ctx, u, service.TeamInput{
		Name:    mcp.ParseString(request, "name", ""),
		Members: members,
		Tasks:   staged,
	})
	if err != nil {
		h.staging.Restore(sessionID, staged)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"team": team, "tasks": tasks})
}

func (h *handlers) listActivity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := h.svc.Activity.List(ctx, u, mcp.ParseString(request, "search", ""), mcp.ParseInt(request, "limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"activity": entries})
}

func (h *handlers) getAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := h.svc.Tasks.Visible(ctx, visibility.ViewerOf(u), visibility.Filters{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(analytics.Summarize(res.Tasks, h.now()))
}
