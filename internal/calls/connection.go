package calls

import (
	"context"
	"fmt"
	"strings"

	"recruit-comms/internal/telephony"
)

// GetConnectionStatus resolves credentials and checks the account with a live request.
func (o *Orchestrator) GetConnectionStatus(ctx context.Context) ConnectionStatus {
	rg, err := o.handle.load(ctx)
	if err != nil {
		o.log.Error("telephony credential resolution failed", "err", err)
		return ConnectionStatus{Source: SourceNone, Error: "telephony credentials could not be loaded"}
	}
	if rg.source == SourceNone {
		return ConnectionStatus{Source: SourceNone, Error: "Telephony credentials are not configured"}
	}
	st := o.checkAccount(ctx, rg.gateway)
	st.Source = rg.source
	st.PhoneNumber = rg.creds.PhoneNumber
	return st
}

// TestConnection runs the same live check with credentials that are not saved anywhere.
func (o *Orchestrator) TestConnection(ctx context.Context, creds telephony.Credentials) ConnectionStatus {
	creds = telephony.Credentials{
		AccountSID:  strings.TrimSpace(creds.AccountSID),
		AuthToken:   strings.TrimSpace(creds.AuthToken),
		PhoneNumber: strings.TrimSpace(creds.PhoneNumber),
	}
	if err := telephony.ValidateCredentials(creds); err != nil {
		return ConnectionStatus{Source: SourceCandidate, Error: err.Error()}
	}
	st := o.checkAccount(ctx, o.handle.factory(creds))
	st.Source = SourceCandidate
	st.PhoneNumber = creds.PhoneNumber
	return st
}

func (o *Orchestrator) checkAccount(ctx context.Context, gw Gateway) ConnectionStatus {
	checkCtx, cancel := context.WithTimeout(ctx, connectionCheckTimeout)
	defer cancel()
	acct, err := gw.FetchAccount(checkCtx)
	if err != nil {
		o.log.Warn("telephony account check failed", "err", err)
		return ConnectionStatus{Error: err.Error()}
	}
	st := ConnectionStatus{AccountID: acct.SID}
	if acct.Status != "" && !strings.EqualFold(acct.Status, "active") {
		st.Error = fmt.Sprintf("account status is %s", acct.Status)
		return st
	}
	st.Connected = true
	return st
}
