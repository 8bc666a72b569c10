package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const fieldsBodyMessage = `Body must be: { "fields": { ... } }`

func (s *Server) handleListTickets(c *gin.Context) {
	payload, err := s.tickets.ListRecords(c.Request.Context())
	if err != nil {
		badGateway(c, err)
		return
	}
	writePayload(c, payload)
}

func (s *Server) handleCreateTicket(c *gin.Context) {
	fields, ok := fieldsFromBody(c)
	if !ok {
		return
	}
	payload, err := s.tickets.CreateRecord(c.Request.Context(), fields)
	if err != nil {
		badGateway(c, err)
		return
	}
	writePayload(c, payload)
}

func (s *Server) handleUpdateTicket(c *gin.Context) {
	fields, ok := fieldsFromBody(c)
	if !ok {
		return
	}
	payload, err := s.tickets.UpdateRecord(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		badGateway(c, err)
		return
	}
	writePayload(c, payload)
}

func (s *Server) handleDeleteTicket(c *gin.Context) {
	payload, err := s.tickets.DeleteRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		badGateway(c, err)
		return
	}
	writePayload(c, payload)
}

// fieldsFromBody extracts the "fields" object, answering 400 itself when the
// body is missing, not JSON, or has no object under "fields".
func fieldsFromBody(c *gin.Context) (json.RawMessage, bool) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"message": fieldsBodyMessage})
		return nil, false
	}
	fields := gjson.GetBytes(body, "fields")
	if !fields.IsObject() {
		c.JSON(http.StatusBadRequest, gin.H{"message": fieldsBodyMessage})
		return nil, false
	}
	return json.RawMessage(fields.Raw), true
}

// writePayload relays the datasheet answer as is, envelope errors included.
func writePayload(c *gin.Context, payload json.RawMessage) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}
