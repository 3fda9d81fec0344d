package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/opencatalog/fem/cmd/femd/handlers"
	kcfg "github.com/opencatalog/fem/pkg/configs/engine"
	"github.com/opencatalog/fem/pkg/conn/postgres/pool"
	"github.com/opencatalog/fem/pkg/db/postgres/schema"
	"github.com/opencatalog/fem/pkg/domain"
	featpg "github.com/opencatalog/fem/pkg/domain/feature/db/postgres"
	modellocal "github.com/opencatalog/fem/pkg/domain/model/local"
	reqpg "github.com/opencatalog/fem/pkg/domain/request/db/postgres"
	sesspg "github.com/opencatalog/fem/pkg/domain/session/db/postgres"
	storagerest "github.com/opencatalog/fem/pkg/domain/storage/rest"
	"github.com/opencatalog/fem/pkg/events"
	eventlogger "github.com/opencatalog/fem/pkg/events/logger"
	eventstream "github.com/opencatalog/fem/pkg/events/stream"
	eventweb "github.com/opencatalog/fem/pkg/events/web"
	"github.com/opencatalog/fem/pkg/lifecycle/callback"
	"github.com/opencatalog/fem/pkg/lifecycle/maintenance"
	"github.com/opencatalog/fem/pkg/lifecycle/notify"
	"github.com/opencatalog/fem/pkg/lifecycle/register"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
	"github.com/opencatalog/fem/pkg/lifecycle/validate"
	"github.com/opencatalog/fem/pkg/utils/echoutil"
	"github.com/opencatalog/fem/pkg/utils/filewatch"
	kstrings "github.com/opencatalog/fem/pkg/utils/strings"
)

func main() {

	configPath := flag.String("config-path", "", "engine config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	conf, err := kcfg.LoadEngineConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}

	{
		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), *configPath)
		if err != nil {
			log.Fatalf("can not watch configration: %s", err)
		}
		defer cancel()
		context.AfterFunc(ctx, func() {
			log.Println("config file is updated. quit to restart server.")
			graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := e.Shutdown(graceful); err != nil {
				log.Printf("error on shutdown by config update: %s", err)
			}
		})
	}

	ctx := context.Background()
	if err := schema.Upgrade(ctx, conf.Database()); err != nil {
		log.Fatalf("can not upgrade database schema: %s", err)
	}
	pgpool, err := pool.Connect(ctx, conf.Database())
	if err != nil {
		log.Fatalf("can not connect database: %s", err)
	}
	defer pgpool.Close()

	logger := log.Default()

	dbRequest := reqpg.New(pgpool)
	dbFeature := featpg.New(pgpool)
	dbSession := sesspg.New(pgpool)

	var publisher events.Publisher = eventlogger.New(logger)
	if hooks := conf.AckWebhooks(); len(hooks) != 0 {
		publisher = eventweb.Web{URL: hooks}
	}
	hub := eventstream.NewHub(logger)
	publisher = events.Tee(publisher, hub)

	recorder := &session.Recorder{Sessions: dbSession, Logger: logger}
	registrar := &register.Registrar{
		Requests:  dbRequest,
		Features:  dbFeature,
		Validator: &validate.Validator{Models: modellocal.New(conf.Models().Dir())},
		Publisher: publisher,
		Recorder:  recorder,
		Logger:    logger,
	}
	manager := &maintenance.Manager{
		Requests:   dbRequest,
		Features:   dbFeature,
		Storage:    storagerest.New(conf.Storage().Endpoint(), http.DefaultClient),
		Logger:     logger,
		StaleAfter: conf.Scheduler().StaleAfter(),
	}
	onStorageResult := &callback.StorageHandler{
		Requests: dbRequest,
		Features: dbFeature,
		Recorder: recorder,
		Logger:   logger,
	}
	onNotifierAck := &notify.AckHandler{
		Requests:  dbRequest,
		Publisher: publisher,
		Recorder:  recorder,
		Logger:    logger,
	}

	admin := handlers.VerifyAdminToken(conf.Admin().JwtKey())

	{
		for kind, endpoint := range map[domain.RequestKind]string{
			domain.KindCreation:     "creations",
			domain.KindUpdate:       "updates",
			domain.KindDeletion:     "deletions",
			domain.KindCopy:         "copies",
			domain.KindNotification: "notifications",
			domain.KindReference:    "references",
		} {
			e.POST(api(endpoint), handlers.IntakeHandler(registrar, kind))
		}
	}

	{
		requestId := "requestId"
		e.GET(api("requests"), handlers.FindRequestHandler(dbRequest))
		e.GET(api("requests/:requestId/"), handlers.GetRequestHandler(dbRequest, requestId))

		e.PUT(api("requests/retry"), handlers.RetryAllErrorsHandler(manager, conf.Scheduler().MaxBulkSize()), admin)
		e.PUT(api("requests/:requestId/retry"), handlers.RetryRequestHandler(manager, requestId), admin)
		e.PUT(api("requests/:requestId/abort"), handlers.AbortRequestHandler(manager, requestId), admin)
		e.DELETE(api("requests/:requestId/"), handlers.DeleteRequestHandler(manager, requestId), admin)
	}

	{
		e.POST(api("callbacks/storage"), handlers.StorageResultHandler(onStorageResult))
		e.POST(api("callbacks/notifier"), handlers.NotifierAckHandler(onNotifierAck))
		e.PUT(api("callbacks/dissemination/:urn"), handlers.DisseminationAckHandler(manager, "urn"))
	}

	{
		e.GET(
			api("sessions/:owner/:session/"),
			handlers.GetSessionHandler(dbSession, "owner", "session"),
		)
	}

	e.GET(api("events"), handlers.WatchAcksHandler(hub))

	log.Println("registred routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	cert, key := *pcert, *pkey
	port := fmt.Sprintf(":%d", conf.Port())
	if cert != "" && key != "" {
		e.Logger.Fatal(e.StartTLS(port, cert, key))
	} else {
		e.Logger.Fatal(e.Start(port))
	}
}

// build the full path of an API route, "/" terminated.
func api(parts ...string) string {
	p := path.Join(append([]string{"/api"}, parts...)...)
	return kstrings.SupplySuffix(p, "/")
}
