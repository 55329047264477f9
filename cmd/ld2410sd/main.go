package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/ld2410s/pkg/bridge/mqtt"
	"github.com/robotalks/ld2410s/pkg/env"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/radar"
)

func init() {
	env.SetupFlags()
	radar.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, radarConf := env.Default(), radar.Default()
	transport := conf.MustOpen()
	driver, err := radarConf.NewDriver(transport)
	if err != nil {
		log.Fatalln(err)
	}

	loop := fx.NewLoop()
	loop.Interval = radarConf.PollInterval
	loop.Add(transport, driver)
	if conf.MQTTBrokerURL != "" {
		bridge, err := mqtt.NewBridge(conf.MQTTBrokerURL, conf.ID)
		if err != nil {
			log.Fatalln(err)
		}
		bridge.Attach(driver)
		loop.Add(bridge)
	}

	ctx := fx.NewRunner().HandleSignals().Context
	if err := driver.Setup(ctx); err != nil {
		glog.Warningf("setup %s: %v", transport.Name, err)
	}
	glog.Infof("ld2410s %s running on %s", conf.ID, transport.Name)
	loop.RunOrFail(ctx)
}
