package gateway

import (
	"github.com/randalmurphal/notifyflow/pkg/notifyflow/config"
)

// FromSettings builds the SMS and push senders named by s. A channel whose
// gateway URL is empty uses fallback, so a process without providers still
// records what it would have sent.
func FromSettings(s config.Settings, fallback *Recorder) (SMSSender, PushSender, error) {
	var (
		sms  SMSSender  = fallback
		push PushSender = fallback
	)
	if s.SMSGatewayURL != "" {
		c, err := NewHTTPSMS(HTTPConfig{URL: s.SMSGatewayURL, Token: s.GatewayToken, Timeout: s.GatewayTimeout})
		if err != nil {
			return nil, nil, err
		}
		sms = c
	}
	if s.PushGatewayURL != "" {
		c, err := NewHTTPPush(HTTPConfig{URL: s.PushGatewayURL, Token: s.GatewayToken, Timeout: s.GatewayTimeout})
		if err != nil {
			return nil, nil, err
		}
		push = c
	}
	return sms, push, nil
}
