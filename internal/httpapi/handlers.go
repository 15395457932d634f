package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/go-pos-store/internal/auth"
	"github.com/safar/go-pos-store/internal/inventory"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/sales"
	"github.com/shopspring/decimal"
)

const (
	dateLayout   = "2006-01-02"
	xlsxMIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// orderLineBody keeps the raw JSON types so that a numeric id or a
// fractional quantity is rejected by validation rather than by decoding.
type orderLineBody struct {
	ID       any `json:"id"`
	Quantity any `json:"quantity"`
}

type placeOrderBody struct {
	Items         []orderLineBody `json:"items"`
	OrderName     string          `json:"orderName"`
	PaymentMethod string          `json:"paymentMethod"`
}

func (b orderLineBody) lineRequest() sales.LineRequest {
	var line sales.LineRequest
	if id, ok := b.ID.(string); ok {
		line.ItemID = id
	}
	if q, ok := b.Quantity.(float64); ok && q == math.Trunc(q) && q <= math.MaxInt32 {
		line.Quantity = int(q)
	}
	return line
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	lines := make([]sales.LineRequest, len(body.Items))
	for i, item := range body.Items {
		lines[i] = item.lineRequest()
	}

	result, err := h.deps.Sales.PlaceOrder(c.Request.Context(), sales.PlaceOrderRequest{
		Items:         lines,
		Name:          body.OrderName,
		PaymentMethod: models.PaymentMethod(body.PaymentMethod),
		Cashier:       cashier(c),
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, gin.H{
		"message":       "Order placed",
		"orderId":       result.OrderID,
		"paymentMethod": result.PaymentMethod,
	})
}

type orderView struct {
	models.Order
	TotalBill decimal.Decimal `json:"totalBill"`
}

// parseBound accepts a calendar date or an RFC 3339 timestamp. A date given
// as an upper bound covers that whole day. Upper bounds are exclusive and
// Postgres keeps microseconds, so a timestamp bound moves up by one
// microsecond.
func parseBound(value string, upper bool) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		if upper {
			return t.AddDate(0, 0, 1), nil
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	t = t.Truncate(time.Microsecond)
	if upper {
		return t.Add(time.Microsecond), nil
	}
	return t, nil
}

func (h *Handler) ListOrders(c *gin.Context) {
	var from, to *time.Time

	start, end := c.Query("startDate"), c.Query("endDate")
	if start != "" && end != "" {
		f, err := parseBound(start, false)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		t, err := parseBound(end, true)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		from, to = &f, &t
	}

	orders, err := h.deps.Sales.ListOrders(c.Request.Context(), from, to)
	if err != nil {
		respondErr(c, err)
		return
	}

	views := make([]orderView, len(orders))
	for i, o := range orders {
		if o.Items == nil {
			o.Items = []models.OrderLineItem{}
		}
		views[i] = orderView{Order: o, TotalBill: o.TotalBill()}
	}
	respondJSON(c, http.StatusOK, gin.H{"orders": views})
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.deps.Sales.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}

	if order.Items == nil {
		order.Items = []models.OrderLineItem{}
	}
	respondJSON(c, http.StatusOK, gin.H{"order": orderView{Order: *order, TotalBill: order.TotalBill()}})
}

func (h *Handler) ListInventory(c *gin.Context) {
	items, err := h.deps.Inventory.List(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"items": items})
}

type intakeBody struct {
	Items []struct {
		Name      string          `json:"name"`
		CostPrice decimal.Decimal `json:"costPrice"`
		SalePrice decimal.Decimal `json:"sale_price"`
		Units     int             `json:"units"`
	} `json:"items"`
}

func (h *Handler) AddInventory(c *gin.Context) {
	var body intakeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	lines := make([]inventory.IntakeLine, len(body.Items))
	for i, item := range body.Items {
		lines[i] = inventory.IntakeLine{
			Name:      item.Name,
			CostPrice: item.CostPrice,
			SalePrice: item.SalePrice,
			Units:     item.Units,
		}
	}

	items, err := h.deps.Inventory.Intake(c.Request.Context(), cashier(c), lines)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"message": "Inventory processed successfully!", "data": items})
}

func (h *Handler) ListCatalog(c *gin.Context) {
	catalog, err := h.deps.Inventory.Catalog(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	respondJSON(c, http.StatusOK, catalog)
}

type financeBody struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *Handler) AddExpense(c *gin.Context) {
	var body financeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.deps.Finance.AddExpense(c.Request.Context(), cashier(c), body.Amount, body.Description)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"message": "Expense added successfully!", "data": entry})
}

func (h *Handler) AddInvestment(c *gin.Context) {
	var body financeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.deps.Finance.AddInvestment(c.Request.Context(), cashier(c), body.Amount, body.Description)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"message": "Investment added successfully!", "data": entry})
}

func (h *Handler) ExportCSV(c *gin.Context) {
	exportType := c.Query("type")

	var buf bytes.Buffer
	if err := h.deps.Export.WriteCSV(c.Request.Context(), exportType, &buf); err != nil {
		respondErr(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportType+".csv"))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *Handler) ExportLedger(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.deps.Export.WriteLedger(c.Request.Context(), &buf); err != nil {
		respondErr(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="ledger.xlsx"`)
	c.Data(http.StatusOK, xlsxMIMEType, buf.Bytes())
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) setTokenCookie(c *gin.Context, token string, expires time.Time, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" || body.Password == "" {
		respondError(c, http.StatusBadRequest, "Missing username or password")
		return
	}

	token, user, err := h.deps.Auth.Login(c.Request.Context(), body.Username, body.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		respondErr(c, err)
		return
	}

	ttl := h.deps.Auth.TTL()
	h.setTokenCookie(c, token, time.Now().Add(ttl), int(ttl.Seconds()))
	respondJSON(c, http.StatusOK, gin.H{"message": "Login successful", "user": user})
}

func (h *Handler) Logout(c *gin.Context) {
	h.setTokenCookie(c, "", time.Unix(0, 0), -1)
	respondJSON(c, http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.deps.Health.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
