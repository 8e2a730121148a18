package handler

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/custodial-tipbot/internal/admin_api/service"
	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/gin-gonic/gin"
)

const recentCommandsWindow = 24 * time.Hour

// CommandHandler serves the command audit log
type CommandHandler struct {
	commandService service.CommandService
	logger         *slog.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(logger *slog.Logger, commandService service.CommandService) *CommandHandler {
	return &CommandHandler{
		commandService: commandService,
		logger:         logger,
	}
}

// List pages through an author's commands, or through the last day when no author is given
func (h *CommandHandler) List(c *gin.Context) {
	var params CommandListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		entries []*audit.Entry
		total   = int64(-1)
		err     error
	)
	if params.Author != "" {
		author := account.NormalizeIdentity(params.Author)
		entries, total, err = h.commandService.GetCommandsByAuthor(ctx, author, params.Page, params.PerPage)
	} else {
		entries, err = h.commandService.GetRecentCommands(ctx, recentCommandsWindow, params.Page, params.PerPage)
	}
	if err != nil {
		h.logger.Error("Failed to list commands", "author", params.Author, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]CommandResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, mapEntryToResponse(entry))
	}
	RespondPaginated(c, response, params.Page, params.PerPage, int(total))
}

// GetByID returns one audited command
func (h *CommandHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		RespondBadRequest(c, "Invalid command ID")
		return
	}

	entry, err := h.commandService.GetCommandByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrEntryNotFound{}) {
			RespondNotFound(c, "Command not found")
			return
		}
		h.logger.Error("Failed to get command", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, mapEntryToResponse(entry))
}
