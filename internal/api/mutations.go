package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func dec(v uint256.Int) string { return v.Dec() }

func decode(r *http.Request, v any) error {
	d := json.NewDecoder(r.Body)
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil {
		return fmt.Errorf("bad json: %w", err)
	}
	return nil
}

func (c *Controller) HandleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := model.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slot, received, err := c.Ledger.Stake(r.Context(), account, req.Pool, amount)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":     req.Pool,
		"slot":     slot,
		"received": received.Dec(),
	})
}

func (c *Controller) decodeSlot(w http.ResponseWriter, r *http.Request) (common.Address, *slotRequest, bool) {
	var req slotRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, nil, false
	}
	account, err := model.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, nil, false
	}
	return account, &req, true
}

func (c *Controller) HandleUnstake(w http.ResponseWriter, r *http.Request) {
	account, req, ok := c.decodeSlot(w, r)
	if !ok {
		return
	}
	principal, rewards, err := c.Ledger.Unstake(r.Context(), account, req.Pool, req.Slot)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"principal": principal.Dec(),
		"rewards":   rewards.Dec(),
		"deferred":  dec(c.Ledger.DeferredRewards(account, req.Pool, req.Slot)),
	})
}

func (c *Controller) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, req, ok := c.decodeSlot(w, r)
	if !ok {
		return
	}
	paid, deferred, err := c.Ledger.WithdrawRewards(r.Context(), account, req.Pool, req.Slot)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"paid":     paid.Dec(),
		"deferred": deferred.Dec(),
	})
}

func (c *Controller) HandleCompound(w http.ResponseWriter, r *http.Request) {
	account, req, ok := c.decodeSlot(w, r)
	if !ok {
		return
	}
	slot, amount, err := c.Ledger.Compound(r.Context(), account, req.Pool, req.Slot)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":   req.Pool,
		"slot":   slot,
		"amount": amount.Dec(),
	})
}

func (c *Controller) HandleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := model.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	received, err := c.Ledger.FundRewards(r.Context(), from, amount)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"received":    received.Dec(),
		"reward_fund": dec(c.Ledger.RewardFund()),
	})
}

func caller(r *http.Request) (common.Address, error) {
	return model.ParseAddress(r.Header.Get("X-Caller"))
}

func (c *Controller) HandleRescue(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "X-Caller: "+err.Error())
		return
	}
	var req rescueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.Ledger.RescueFund(r.Context(), who, amount); err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reward_fund": dec(c.Ledger.RewardFund())})
}

func (c *Controller) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "X-Caller: "+err.Error())
		return
	}
	var req ownerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	newOwner, err := model.ParseAddress(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.Ledger.TransferOwnership(r.Context(), who, newOwner); err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": newOwner.Hex()})
}
