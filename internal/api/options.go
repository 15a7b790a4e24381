package api

import "github.com/barmeter-community/barmeter-agent/pkg/agent"

type HttpApiServiceOption func(*BarMeterHttpService)

func WithBarMeterAgent(agent agent.BarMeterAgent) HttpApiServiceOption {
	return func(service *BarMeterHttpService) {
		service.agent = agent
	}
}

func WithListenAddr(addr string) HttpApiServiceOption {
	return func(service *BarMeterHttpService) {
		service.listenAddr = addr
	}
}
