package filely

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/filely/filely/pkg/api"
	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/reclaim"
	"github.com/filely/filely/pkg/share"
	"github.com/filely/filely/pkg/storage"
)

func setupLogs(logConfig config.Logging) {
	// Equivalent of Lshortfile
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		file = short
		return file + ":" + strconv.Itoa(line)
	}

	logLevel := zerolog.InfoLevel
	switch logConfig.Level {
	case "panic":
		logLevel = zerolog.PanicLevel
	case "fatal":
		logLevel = zerolog.FatalLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	case "trace":
		logLevel = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if logConfig.JSONFormat {
		log.Logger = log.With().Caller().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Caller().Logger()
	}
}

func GetStorageServices(c config.FilelyConfig) (*storage.Services, error) {
	return storage.New(c)
}

func Run(conf config.FilelyConfig, storageServices *storage.Services) {
	setupLogs(conf.Logging)

	log.Debug().Msg("Starting Filely")

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	shares := share.NewService(conf.Uploads, storageServices)

	wg.Add(1)
	go func() {
		defer wg.Done()

		apiFunctions := api.NewFilelyAPI(conf, storageServices, shares)
		mux := api.CreateMux(conf, apiFunctions)
		api.RunAPI(ctx, conf.API, mux)
	}()

	if conf.Reclaimer.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reclaim.New(conf.Reclaimer, storageServices).Run(ctx)
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, os.Interrupt)

	go func() {
		sig := <-sigs
		log.Debug().Str("signal", sig.String()).Msg("Received signal, stopping")
		cancel()
	}()

	wg.Wait()
	log.Debug().Msg("Done")
}
