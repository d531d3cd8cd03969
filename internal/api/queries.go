package api

import (
	"net/http"
	"strconv"

	"LovelyStaking/internal/model"

	"github.com/gorilla/mux"
)

func (c *Controller) HandlePools(w http.ResponseWriter, _ *http.Request) {
	pools := c.Ledger.Pools()
	out := make([]poolView, len(pools))
	for i := range pools {
		out[i] = newPoolView(&pools[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *Controller) HandlePool(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["pool"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}
	pool, err := c.Ledger.Pool(id)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(&pool))
}

func (c *Controller) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	sum := c.Ledger.Summary()
	out := summaryView{
		RewardFund:  sum.RewardFund.Dec(),
		TotalStaked: sum.TotalStaked.Dec(),
		Owner:       c.Ledger.Owner().Hex(),
		Contract:    c.Ledger.Contract().Hex(),
		Pools:       make([]poolView, len(sum.Pools)),
		UpdatedAt:   sum.UpdatedAt,
	}
	for i := range sum.Pools {
		out.Pools[i] = newPoolView(&sum.Pools[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *Controller) HandleAccountPool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	account, err := model.ParseAddress(vars["account"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	poolID, err := strconv.ParseUint(vars["pool"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	deposits, err := c.Ledger.Deposits(account, poolID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	total, err := c.Ledger.PoolPendingRewards(account, poolID)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	out := accountPoolView{
		Account:      account.Hex(),
		Pool:         poolID,
		TotalPending: total.Dec(),
		Deposits:     make([]depositView, len(deposits)),
	}
	for i := range deposits {
		d := &deposits[i]
		slot := uint64(i)
		pending, err := c.Ledger.PendingRewards(account, poolID, slot)
		if err != nil {
			c.fail(w, r, err)
			return
		}
		out.Deposits[i] = depositView{
			Slot:             slot,
			Open:             d.Open(),
			Amount:           d.Amount.Dec(),
			StartTime:        d.StartTime,
			EndTime:          d.EndTime,
			LastSettledTime:  d.LastSettledTime,
			TotalRewardsPaid: d.TotalRewardsPaid.Dec(),
			Pending:          pending.Dec(),
			Deferred:         dec(c.Ledger.DeferredRewards(account, poolID, slot)),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *Controller) HandleEarnings(w http.ResponseWriter, r *http.Request) {
	account, err := model.ParseAddress(mux.Vars(r)["account"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":  account.Hex(),
		"earnings": dec(c.Ledger.LifetimeEarnings(account)),
	})
}

func (c *Controller) HandleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	events, err := c.Recorder.RecentEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]eventView, len(events))
	for i := range events {
		out[i] = newEventView(&events[i])
	}
	writeJSON(w, http.StatusOK, out)
}
