// padsim stands in for the M5Stick: it publishes connect and button
// messages to the broker the server listens on.
//
//	padsim --id 24:0A:C4:12:34:56 connect right right down
//	padsim --player player2 --bare run
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"
)

type options struct {
	broker   string
	topic    string
	id       string
	player   string
	step     float64
	bare     bool
	interval time.Duration
	repeat   int
}

var buttons = map[string]bool{"up": true, "down": true, "left": true, "right": true, "run": true}

func main() {
	cobra.CheckErr(newCmd(&options{}).Execute())
}

func newCmd(o *options) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PADSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "padsim [connect|up|down|left|right|run]...",
		Short: "Publishes controller messages to an MQTT broker.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := buildMessages(o, args)
			if err != nil {
				return err
			}
			return publish(o, msgs)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&o.broker, "broker-url", "tcp://localhost:1883", "broker URL (env: PADSIM_BROKER_URL)")
	fs.StringVar(&o.topic, "topic", "yokohama/hackathon/running/player1", "topic to publish on (env: PADSIM_TOPIC)")
	fs.StringVar(&o.id, "id", "", "controller id sent with every message (env: PADSIM_ID)")
	fs.StringVar(&o.player, "player", "", "playerId for fixed-slot mode (env: PADSIM_PLAYER)")
	fs.Float64Var(&o.step, "step", 0, "step size; 0 leaves it to the server default (env: PADSIM_STEP)")
	fs.BoolVar(&o.bare, "bare", false, "publish bare button words instead of JSON (env: PADSIM_BARE)")
	fs.DurationVar(&o.interval, "interval", 150*time.Millisecond, "delay between messages (env: PADSIM_INTERVAL)")
	fs.IntVar(&o.repeat, "repeat", 1, "times to send the whole sequence (env: PADSIM_REPEAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.SilenceUsage = true
	return cmd
}

func buildMessages(o *options, args []string) ([][]byte, error) {
	var out [][]byte
	for _, a := range args {
		a = strings.ToLower(a)
		if a != wire.EventConnect && !buttons[a] {
			return nil, fmt.Errorf("unknown message %q", a)
		}

		if o.bare {
			if a == wire.EventConnect {
				return nil, errors.New("connect needs JSON; drop --bare")
			}
			out = append(out, []byte(a))
			continue
		}

		p := wire.ControllerPayload{ID: o.id, PlayerID: o.player}
		if a == wire.EventConnect {
			if o.id == "" {
				return nil, errors.New("connect needs --id")
			}
			p.Event = wire.EventConnect
		} else {
			p.Button = a
			if o.step != 0 {
				step := o.step
				p.Step = &step
			}
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func publish(o *options, msgs [][]byte) error {
	host, _ := os.Hostname()
	opts := mqtt.NewClientOptions().
		AddBroker(o.broker).
		SetClientID(fmt.Sprintf("padsim-%s-%d", host, os.Getpid())).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connect %s: timed out", o.broker)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", o.broker, err)
	}
	defer client.Disconnect(250)

	for i := 0; i < o.repeat; i++ {
		for _, m := range msgs {
			tok := client.Publish(o.topic, 0, false, m)
			tok.Wait()
			if err := tok.Error(); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			fmt.Printf("%s <- %s\n", o.topic, m)
			time.Sleep(o.interval)
		}
	}
	return nil
}
