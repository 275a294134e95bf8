package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"smartpay/config"
	"smartpay/db/db"
	"smartpay/db/mem"
	"smartpay/db/pg"
	"smartpay/mq/gcppubsub"
	"smartpay/mq/goch"
	"smartpay/mq/mq"
	"smartpay/mq/rabbit"
	"smartpay/service"
	"smartpay/web"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  `This command starts the web server for the application.`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			if port := cmd.Flags().Lookup("port").Value.String(); port != "" {
				cfg.Port = port
			}
			dbMode := cmd.Flags().Lookup("db").Value.String()
			mqMode := cmd.Flags().Lookup("mq").Value.String()

			store := buildStore(dbMode, cfg)
			queues := buildQueues(mqMode, cfg)

			svc := service.NewGroupService(store, queues)
			if err := web.Serve(cfg, svc); err != nil {
				log.Fatalf("Server stopped: %v", err)
			}
		},
	}

	cmd.Flags().String("port", "", "Port to run the web server on (defaults to PORT or 8080)")
	cmd.Flags().String("db", "postgres", "Storage backend (postgres, memory)")
	cmd.Flags().String("mq", "go_chan", "Message queue mode (go_chan, rabbitmq, gcp_pub_sub)")

	return cmd
}

func buildStore(mode string, cfg *config.Config) db.GroupDBWrapper {
	switch mode {
	case "memory":
		log.Println("Using in-memory storage, data is lost on shutdown")
		return mem.NewInMemoryGroupDBWrapper()
	case "postgres":
		gormDB, err := pg.InitPostgresGORM(pg.CreateDSN())
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		return pg.NewGORMGroupDBWrapper(gormDB)
	default:
		log.Fatalf("Unknown db mode %q", mode)
		return nil
	}
}

func buildQueues(mode string, cfg *config.Config) mq.GroupMessageQueueWrapper {
	switch mode {
	case "go_chan":
		return goch.NewGoChanGroupMessageQueueWrapper()
	case "rabbitmq":
		conn := rabbit.NewRabbitConnection(cfg.RabbitURL)
		wrapper, err := rabbit.NewRabbitGroupMessageQueueWrapper(conn)
		if err != nil {
			log.Fatalf("Failed to set up RabbitMQ queues: %v", err)
		}
		return wrapper
	case "gcp_pub_sub":
		project := cfg.GCPProject
		if project == "" {
			project = gcppubsub.GetGCPProjectID()
		}
		wrapper, err := gcppubsub.NewGCPGroupMessageQueueWrapper(context.Background(), project)
		if err != nil {
			log.Fatalf("Failed to set up GCP Pub/Sub queues: %v", err)
		}
		return wrapper
	default:
		log.Fatalf("Unknown mq mode %q", mode)
		return nil
	}
}
