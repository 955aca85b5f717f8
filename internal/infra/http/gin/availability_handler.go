package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/dto"
	availabilityapp "ecostay/internal/app/handlers/availability"
	"ecostay/internal/app/queries"
	"ecostay/internal/domain/shared/daterange"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type blockedDatesRequest struct {
	Dates []daterange.Date `json:"dates"`
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Block(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req blockedDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := availabilityapp.BlockDatesCommand{ListingID: c.Param("id"), HostID: user.ID, Dates: req.Dates}
	result, err := commands.Dispatch[availabilityapp.BlockDatesCommand, dto.Calendar](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Unblock(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req blockedDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := availabilityapp.UnblockDatesCommand{ListingID: c.Param("id"), HostID: user.ID, Dates: req.Dates}
	result, err := commands.Dispatch[availabilityapp.UnblockDatesCommand, dto.Calendar](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
