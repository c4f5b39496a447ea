package main

import (
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Employee struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TaxID    string `json:"identification"`
	PinCode  string `json:"pin_code"`
	JobTitle string `json:"job_title"`
}

type Expense struct {
	ID                    int64          `json:"id"`
	Payload               map[string]any `json:"payload"`
	CoordinateDescription string         `json:"coordinate_description"`
	CreatedAt             time.Time      `json:"created_at"`
}

// Upstream plays the employee directory, the ERP, the location bot and the
// vehicle tracker in a single process.
type Upstream struct {
	mu          sync.Mutex
	token       string
	roster      []Employee
	expenses    map[int64]*Expense
	nextID      int64
	failureRate float64
	rng         *rand.Rand
}

func NewUpstream(roster []Employee, failureRate float64) *Upstream {
	return &Upstream{
		token:       uuid.NewString(),
		roster:      roster,
		expenses:    make(map[int64]*Expense),
		nextID:      1000,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func DefaultRoster() []Employee {
	return []Employee{
		{ID: 17, Name: "Ana María Gómez", TaxID: "1020304050", PinCode: "9001", JobTitle: "Driver"},
		{ID: 18, Name: "Jorge Pérez", TaxID: "80111222", PinCode: "9002", JobTitle: "Field technician"},
		{ID: 19, Name: "Lucía Rojas", TaxID: "52333444", PinCode: "9003", JobTitle: "Supervisor"},
	}
}

func (u *Upstream) shouldFail() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rng.Float64() < u.failureRate
}

func (u *Upstream) authorized(c *gin.Context) bool {
	if c.GetHeader("Authorization") != "Bearer "+u.token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return false
	}
	return true
}

func (u *Upstream) Employees(c *gin.Context) {
	if u.shouldFail() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory temporarily unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": u.token, "items": u.roster})
}

func (u *Upstream) RegisterExpense(c *gin.Context) {
	if !u.authorized(c) {
		return
	}
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if u.shouldFail() {
		log.Warn().Interface("employee_id", payload["employee_id"]).Msg("simulated expense rejection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simulated failure"})
		return
	}

	u.mu.Lock()
	u.nextID++
	exp := &Expense{ID: u.nextID, Payload: payload, CreatedAt: time.Now()}
	if desc, ok := payload["coordinate_description"].(string); ok {
		exp.CoordinateDescription = desc
	}
	u.expenses[exp.ID] = exp
	u.mu.Unlock()

	log.Info().Int64("id", exp.ID).Interface("total_amount", payload["total_amount"]).Msg("expense registered")
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"id": exp.ID}})
}

func (u *Upstream) PatchExpense(c *gin.Context) {
	if !u.authorized(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body struct {
		CoordinateDescription string `json:"coordinate_description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	u.mu.Lock()
	exp, ok := u.expenses[id]
	if ok {
		exp.CoordinateDescription = body.CoordinateDescription
	}
	u.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
		return
	}

	log.Info().Int64("id", id).Str("coordinates", body.CoordinateDescription).Msg("expense coordinates updated")
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": id})
}

func (u *Upstream) RegisterPin(c *gin.Context) {
	if !u.authorized(c) {
		return
	}
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || c.Query("nif") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and nif are required"})
		return
	}
	var body struct {
		Pin string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	for i := range u.roster {
		if u.roster[i].ID != id {
			continue
		}
		if u.roster[i].PinCode != "" {
			c.JSON(http.StatusConflict, gin.H{"error": "employee already has a pin"})
			return
		}
		u.roster[i].PinCode = body.Pin
		log.Info().Int64("employee_id", id).Str("nif", c.Query("nif")).Msg("pin registered")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
}

func (u *Upstream) ListExpenses(c *gin.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Expense, 0, len(u.expenses))
	for _, e := range u.expenses {
		out = append(out, e)
	}
	c.JSON(http.StatusOK, out)
}

func (u *Upstream) BotAction(c *gin.Context) {
	var body struct {
		RequesterID int64  `json:"requester_id" binding:"required"`
		Token       string `json:"token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	log.Info().Str("action", c.Param("action")).Int64("requester_id", body.RequesterID).Str("token", body.Token).Msg("bot notified")
	c.JSON(http.StatusOK, gin.H{"ok": true, "queued": true})
}

func (u *Upstream) VehicleLocation(c *gin.Context) {
	if c.Query("requester_id") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"plate":   "KLM-482",
		"location": gin.H{
			"lat":       4.6097,
			"lon":       -74.0817,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (u *Upstream) LatestLocation(c *gin.Context) {
	if c.Query("requester_id") == "" {
		c.JSON(http.StatusOK, gin.H{"lat": nil, "lon": nil, "ts": nil, "fresh": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lat":   4.6482,
		"lon":   -74.1015,
		"ts":    time.Now().UTC().Add(-2 * time.Minute).Format(time.RFC3339),
		"fresh": true,
	})
}

func (u *Upstream) UpdateConfig(c *gin.Context) {
	var body struct {
		FailureRate *float64 `json:"failure_rate"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	u.mu.Lock()
	if body.FailureRate != nil && *body.FailureRate >= 0 && *body.FailureRate <= 1 {
		u.failureRate = *body.FailureRate
		log.Info().Float64("rate", u.failureRate).Msg("updated failure rate")
	}
	rate := u.failureRate
	u.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"failure_rate": rate})
}

func SetupRouter(u *Upstream) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	router.GET("/employees", u.Employees)
	router.POST("/api/gastos/register", u.RegisterExpense)
	router.PATCH("/api/gastos/:id", u.PatchExpense)
	router.GET("/api/gastos", u.ListExpenses)
	router.POST("/api/empleados/register", u.RegisterPin)
	router.POST("/bot/:action", u.BotAction)
	router.GET("/tracking/vehicle_location", u.VehicleLocation)
	router.GET("/tracking/latest_location", u.LatestLocation)
	router.PUT("/config", u.UpdateConfig)
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })

	return router
}
