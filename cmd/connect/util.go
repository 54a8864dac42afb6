package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/unchained-capital/connect/internal/config"
	"github.com/unchained-capital/connect/internal/core/application"
	"github.com/unchained-capital/connect/internal/core/ports"
	blockbook_backend "github.com/unchained-capital/connect/internal/infrastructure/backend/blockbook"
	hd_discovery "github.com/unchained-capital/connect/internal/infrastructure/discovery/hd"
)

func getCoordinator() (*application.CoordinatorService, func(), error) {
	svc, err := application.NewCoordinatorService(application.ServiceArgs{
		Endpoints: config.GetStringSlice(config.EndpointsKey),
		Network:   config.GetNetwork(),
		ConnectFn: func(endpoints []string) (ports.BackendConnection, error) {
			return blockbook_backend.NewService(blockbook_backend.ServiceArgs{
				Endpoints:         endpoints,
				RequestsPerSecond: config.GetInt(config.RequestsPerSecondKey),
				RequestTimeout: time.Duration(
					config.GetInt(config.RequestTimeoutKey),
				) * time.Second,
			})
		},
		EngineFn: func(conn ports.BackendConnection) ports.DiscoveryEngine {
			engine, _ := hd_discovery.NewDiscoveryEngine(hd_discovery.EngineArgs{
				Conn:     conn,
				GapLimit: config.GetInt(config.GapLimitKey),
				PollInterval: time.Duration(
					config.GetInt(config.PollIntervalKey),
				) * time.Second,
			})
			return engine
		},
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() { svc.Close() }
	return svc, cleanup, nil
}

func printRespJSON(resp interface{}) {
	buf, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", resp)
		return
	}
	fmt.Println(string(buf))
}
