package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/config"
	"github.com/relabs-tech/node_diagnosis/internal/sensors"
)

const mqttPublishTimeout = 5 * time.Second

// mqttPublisher publishes at QoS 1 and waits for the broker to acknowledge.
type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("mqtt publish to %s: timed out", topic)
	}
	return token.Error()
}

// RunDiagnosisService subscribes to sensor windows over MQTT, diagnoses
// them and publishes reports, while serving the HTTP API on
// WEB_SERVER_PORT. It returns on SIGINT/SIGTERM.
func RunDiagnosisService() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var writer sensors.RangeWriter = sensors.NopRangeWriter{}
	if cfg.HasIMU() {
		w, err := sensors.NewMPU9250RangeWriter(cfg.IMUSPIDevice, cfg.IMUCSPin, logger)
		if err != nil {
			return err
		}
		writer = w
	} else {
		logger.Info("no IMU configured, range changes stay in memory")
	}

	svc := NewService(cfg.Params(), accelrange.NewState(cfg.AccelRange), writer, logger)

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	svc.SetPublisher(mqttPublisher{client: client}, Topics{Verdict: cfg.TopicVerdict, Range: cfg.TopicRange})
	if err := svc.Start(); err != nil {
		return fmt.Errorf("apply initial range: %w", err)
	}

	token := client.Subscribe(cfg.TopicWindow, 1, func(_ mqtt.Client, msg mqtt.Message) {
		if _, err := svc.HandleWindowMessage(msg.Payload()); err != nil {
			logger.Warn("window rejected", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", cfg.TopicWindow, token.Error())
	}
	logger.Info("subscribed to window topic", zap.String("topic", cfg.TopicWindow))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewHandler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	}

	logger.Info("shutting down")
	svc.Hub().Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
