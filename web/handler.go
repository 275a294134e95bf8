package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smartpay/db/db"
	"smartpay/ledger"
	"smartpay/service"
)

// actorHeader names the member acting on guarded endpoints. There is no
// session layer, callers identify themselves by their membership ID.
const actorHeader = "X-Member-ID"

type Handler struct {
	svc *service.GroupService
}

func NewHandler(svc *service.GroupService) *Handler {
	return &Handler{svc: svc}
}

// --- wire types ---

type groupResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	TripCode    string    `json:"tripCode"`
}

type memberResponse struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"groupId"`
	UserID      string    `json:"userId,omitempty"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	IsAdmin     bool      `json:"isAdmin"`
}

type splitResponse struct {
	ID          uuid.UUID  `json:"id"`
	ExpenseID   uuid.UUID  `json:"expenseId"`
	MemberID    uuid.UUID  `json:"memberId"`
	ShareAmount float64    `json:"shareAmount"`
	IsPaid      bool       `json:"isPaid"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
}

type expenseResponse struct {
	ID          uuid.UUID        `json:"id"`
	GroupID     uuid.UUID        `json:"groupId"`
	Description string           `json:"description"`
	Amount      float64          `json:"amount"`
	PaidBy      uuid.UUID        `json:"paidBy"`
	SplitType   ledger.SplitType `json:"splitType"`
	ExpenseDate time.Time        `json:"expenseDate"`
	Splits      []splitResponse  `json:"splits"`
}

type balanceResponse struct {
	Member       memberResponse `json:"member"`
	TotalOwed    float64        `json:"totalOwed"`
	TotalPaid    float64        `json:"totalPaid"`
	PendingCount int            `json:"pendingCount"`
	FullySettled bool           `json:"fullySettled"`
}

type transferResponse struct {
	From   uuid.UUID `json:"from"`
	To     uuid.UUID `json:"to"`
	Amount float64   `json:"amount"`
}

func toGroupResponse(info *db.GroupInfo) groupResponse {
	return groupResponse{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		CreatedBy:   info.CreatedBy,
		TripCode:    info.TripCode,
	}
}

func toMemberResponse(m ledger.Member) memberResponse {
	return memberResponse{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		Name:        m.Name,
		PhoneNumber: m.PhoneNumber,
		IsAdmin:     m.IsAdmin,
	}
}

func toSplitResponse(s ledger.Split) splitResponse {
	return splitResponse{
		ID:          s.ID,
		ExpenseID:   s.ExpenseID,
		MemberID:    s.MemberID,
		ShareAmount: s.ShareAmount,
		IsPaid:      s.IsPaid,
		PaidAt:      s.PaidAt,
	}
}

func toExpenseResponse(e ledger.Expense) expenseResponse {
	splits := make([]splitResponse, 0, len(e.Splits))
	for _, s := range e.Splits {
		splits = append(splits, toSplitResponse(s))
	}
	return expenseResponse{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      e.Amount,
		PaidBy:      e.PaidBy,
		SplitType:   e.SplitType,
		ExpenseDate: e.ExpenseDate,
		Splits:      splits,
	}
}

// --- shared plumbing ---

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrConflict):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func actorID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader(actorHeader)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": actorHeader + " header is required"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": actorHeader + " header is not a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is not a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// --- group handlers ---

type createGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy" binding:"required"`
	CreatorName string `json:"creatorName"`
	PhoneNumber string `json:"phoneNumber"`
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, creator, err := h.svc.CreateGroup(service.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		CreatorName: req.CreatorName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"group":   toGroupResponse(info),
		"creator": toMemberResponse(*creator),
	})
}

func (h *Handler) ListGroups(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId query parameter is required"})
		return
	}
	groups, err := h.svc.ListGroupsForUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for i := range groups {
		out = append(out, toGroupResponse(&groups[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetGroup returns the full detail page payload: metadata, roster and
// expenses with their splits.
func (h *Handler) GetGroup(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	info, err := h.svc.GetGroup(groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	members, err := h.svc.Members(groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	expenses, err := h.svc.Expenses(groupID)
	if err != nil {
		respondError(c, err)
		return
	}

	memberOut := make([]memberResponse, 0, len(members))
	for _, m := range members {
		memberOut = append(memberOut, toMemberResponse(m))
	}
	expenseOut := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		expenseOut = append(expenseOut, toExpenseResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{
		"group":    toGroupResponse(info),
		"members":  memberOut,
		"expenses": expenseOut,
	})
}

type updateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) UpdateGroup(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.svc.UpdateGroupInfo(actor, groupID, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(info))
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteGroup(actor, groupID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type joinGroupRequest struct {
	TripCode    string `json:"tripCode" binding:"required"`
	UserID      string `json:"userId" binding:"required"`
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phoneNumber"`
}

func (h *Handler) JoinGroup(c *gin.Context) {
	var req joinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, member, err := h.svc.JoinByTripCode(service.JoinGroupInput{
		TripCode:    req.TripCode,
		UserID:      req.UserID,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"group":  toGroupResponse(info),
		"member": toMemberResponse(*member),
	})
}

// --- member handlers ---

func (h *Handler) ListMembers(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	members, err := h.svc.Members(groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

type addMemberRequest struct {
	UserID      string `json:"userId"`
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phoneNumber"`
	IsAdmin     bool   `json:"isAdmin"`
}

func (h *Handler) AddMember(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.svc.AddMember(actor, service.AddMemberInput{
		GroupID:     groupID,
		UserID:      req.UserID,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMemberResponse(*member))
}

// --- expense handlers ---

func (h *Handler) ListExpenses(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	expenses, err := h.svc.Expenses(groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

type createExpenseRequest struct {
	Description     string               `json:"description" binding:"required"`
	Amount          float64              `json:"amount" binding:"required"`
	PaidBy          uuid.UUID            `json:"paidBy" binding:"required"`
	SplitType       ledger.SplitType     `json:"splitType" binding:"required"`
	ExpenseDate     *time.Time           `json:"expenseDate"`
	SelectedMembers []uuid.UUID          `json:"selectedMembers" binding:"required"`
	CustomShares    map[string]float64   `json:"customShares"`
}

func (h *Handler) CreateExpense(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CreateExpenseInput{
		GroupID:         groupID,
		Description:     req.Description,
		Amount:          req.Amount,
		PaidBy:          req.PaidBy,
		SplitType:       req.SplitType,
		SelectedMembers: req.SelectedMembers,
	}
	if req.ExpenseDate != nil {
		input.ExpenseDate = *req.ExpenseDate
	}
	if len(req.CustomShares) > 0 {
		input.CustomShares = make(map[uuid.UUID]float64, len(req.CustomShares))
		for key, share := range req.CustomShares {
			memberID, err := uuid.Parse(key)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "customShares key is not a valid UUID: " + key})
				return
			}
			input.CustomShares[memberID] = share
		}
	}

	expense, err := h.svc.CreateExpense(actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toExpenseResponse(*expense))
}

// --- settlement handlers ---

func (h *Handler) SettleSplit(c *gin.Context) {
	splitID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	split, err := h.svc.MarkSplitPaid(actor, splitID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSplitResponse(*split))
}

func (h *Handler) GetBalances(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	balances, err := h.svc.Balances(groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceResponse{
			Member:       toMemberResponse(b.Member),
			TotalOwed:    b.TotalOwed,
			TotalPaid:    b.TotalPaid,
			PendingCount: b.PendingCount,
			FullySettled: b.FullySettled(),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetTransfers(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	transfers, err := h.svc.SuggestTransfers(groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]transferResponse, 0, len(transfers))
	for _, tr := range transfers {
		out = append(out, transferResponse{From: tr.From, To: tr.To, Amount: tr.Amount})
	}
	c.JSON(http.StatusOK, out)
}
