package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// dateLayout is the only accepted calendar-date form for query params
// and payloads.
const dateLayout = "2006-01-02"

// transactionRequest is the create/update payload. Amount is a pointer
// so an explicit zero passes the required check.
type transactionRequest struct {
	Payee      string  `json:"payee" binding:"required"`
	Amount     *int64  `json:"amount" binding:"required"`
	Date       string  `json:"date" binding:"required"`
	AccountID  string  `json:"accountId" binding:"required"`
	CategoryID *string `json:"categoryId"`
	Location   *string `json:"location"`
	ExternalID *string `json:"externalId"`
}

func (req *transactionRequest) toInput() (TransactionInput, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return TransactionInput{}, err
	}
	return TransactionInput{
		Payee:      req.Payee,
		Amount:     *req.Amount,
		Date:       date,
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Location:   req.Location,
		ExternalID: req.ExternalID,
	}, nil
}

func listTransactionsHandler(c *gin.Context) {
	owner, ok := getOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	// default window: the last 30 days, inclusive
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date: " + v})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date: " + v})
			return
		}
		to = t
	}
	data, err := listTransactions(owner.ID, from, to, c.Query("accountId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func getTransactionHandler(c *gin.Context) {
	owner, ok := getOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id"})
		return
	}
	data, err := getTransaction(owner.ID, id)
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func createTransactionHandler(c *gin.Context) {
	owner, ok := getOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date: " + req.Date})
		return
	}
	data, err := createTransaction(owner.ID, in)
	if err == ErrNotFound {
		// the referenced account (or category) is not the caller's
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func bulkCreateTransactionsHandler(c *gin.Context) {
	owner, ok := getOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var reqs []transactionRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}
	// one malformed entry aborts the whole batch before any insert
	ins := make([]TransactionInput, 0, len(reqs))
	for _, req := range reqs {
		in, err := req.toInput()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date: " + req.Date})
			return
		}
		ins = append(ins, in)
	}
	data, err := bulkCreateTransactions(owner.ID, ins)
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func updateTransactionHandler(c *gin.Context) {
	owner, ok := getOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id"})
		return
	}
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date: " + req.Date})
		return
	}
	data, err := updateTransaction(owner.ID, id, in)
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func deleteTransactionHandler(c *gin.Context) {
	owner, ok := getOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id"})
		return
	}
	err := deleteTransaction(owner.ID, id)
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": DeletedID{ID: id}})
}

func bulkDeleteTransactionsHandler(c *gin.Context) {
	owner, ok := getOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := bulkDeleteTransactions(owner.ID, req.Ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}
