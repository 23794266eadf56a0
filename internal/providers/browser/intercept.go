package browser

import (
	"fmt"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// interceptor answers paused requests for one page: blocked hosts fail,
// proxy auth challenges get credentials, everything else continues.
type interceptor struct {
	page    *Page
	blocker *Blocker
	proxy   *ProxyConfig
	onBlock func()
}

func (i *interceptor) enabled() bool {
	return i.blocker != nil || i.proxy.HasCredentials()
}

// start enables the Fetch domain and handles events until the page closes
func (i *interceptor) start() error {
	if !i.enabled() {
		return nil
	}

	enable := proto.FetchEnable{
		Patterns:           []*proto.FetchRequestPattern{{URLPattern: "*"}},
		HandleAuthRequests: i.proxy.HasCredentials(),
	}
	if err := enable.Call(i.page.page); err != nil {
		return fmt.Errorf("enable request interception: %w", err)
	}

	rp := i.page.page.Context(i.page.ctx)
	wait := rp.EachEvent(
		func(ev *proto.FetchRequestPaused) {
			// Replies are CDP calls; keep the event loop free while they run.
			i.page.wg.Add(1)
			go func() {
				defer i.page.wg.Done()
				i.handlePaused(ev)
			}()
		},
		func(ev *proto.FetchAuthRequired) {
			i.page.wg.Add(1)
			go func() {
				defer i.page.wg.Done()
				i.handleAuth(ev)
			}()
		},
	)
	i.page.wg.Add(1)
	go func() {
		defer i.page.wg.Done()
		wait()
	}()
	return nil
}

func (i *interceptor) handlePaused(ev *proto.FetchRequestPaused) {
	rp := i.page.page.Context(i.page.ctx)

	if i.blocker != nil && ev.Request != nil && i.blocker.Blocks(ev.Request.URL, string(ev.ResourceType)) {
		if i.onBlock != nil {
			i.onBlock()
		}
		err := proto.FetchFailRequest{
			RequestID:   ev.RequestID,
			ErrorReason: proto.NetworkErrorReasonBlockedByClient,
		}.Call(rp)
		if err != nil {
			i.page.logger.Debug("fail blocked request", zap.Error(err))
		}
		return
	}

	if err := (proto.FetchContinueRequest{RequestID: ev.RequestID}).Call(rp); err != nil {
		i.page.logger.Debug("continue request", zap.Error(err))
	}
}

func (i *interceptor) handleAuth(ev *proto.FetchAuthRequired) {
	rp := i.page.page.Context(i.page.ctx)

	response := &proto.FetchAuthChallengeResponse{
		Response: proto.FetchAuthChallengeResponseResponseDefault,
	}
	if ev.AuthChallenge != nil && ev.AuthChallenge.Source == proto.FetchAuthChallengeSourceProxy && i.proxy.HasCredentials() {
		response = &proto.FetchAuthChallengeResponse{
			Response: proto.FetchAuthChallengeResponseResponseProvideCredentials,
			Username: i.proxy.Username,
			Password: i.proxy.Password,
		}
	}

	err := proto.FetchContinueWithAuth{
		RequestID:             ev.RequestID,
		AuthChallengeResponse: response,
	}.Call(rp)
	if err != nil {
		i.page.logger.Debug("continue with auth", zap.Error(err))
	}
}
