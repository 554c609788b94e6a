package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kaiwa.live/azure"
	"kaiwa.live/room"
	"kaiwa.live/speech"
	"kaiwa.live/web"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(roomsCmd)

	rootCmd.PersistentFlags().Int("port", 3000, "HTTP server port")
	serveCmd.Flags().String("speech", "azure", "Speech backend (azure or fake)")
	serveCmd.Flags().
		Bool("keep-alive-solo", false, "Keep a room open when one participant remains")

	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("speech_backend", serveCmd.Flags().Lookup("speech"))
	viper.BindPFlag(
		"keep_alive_solo",
		serveCmd.Flags().Lookup("keep-alive-solo"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	logger = log.New(os.Stdout)
}

var rootCmd = &cobra.Command{
	Use:   "kaiwa",
	Short: "Kaiwa hosts bilingual conversation rooms",
	Long:  `Kaiwa pairs two speakers of different languages in a room and broadcasts live bilingual transcripts of everything they say.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the room server",
	Run:   runServe,
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the live rooms of a running server",
	Run:   runRooms,
}

func runServe(cmd *cobra.Command, args []string) {
	var factory speech.Factory
	backend := viper.GetString("speech_backend")
	switch backend {
	case "azure":
		factory = azure.Factory(azure.Config{
			Key:    viper.GetString("MICROSOFT_SPEECH_API_KEY"),
			Region: viper.GetString("MICROSOFT_SPEECH_API_REGION"),
		}, logger)
	case "fake":
		factory = func(speech.Language) (speech.Transcriber, error) {
			return speech.NewFake(), nil
		}
	default:
		logger.Fatal("unknown speech backend", "backend", backend)
	}

	reg := room.NewRegistry(room.RegistryConfig{
		NewTranscriber: factory,
		KeepAliveSolo:  viper.GetBool("keep_alive_solo"),
		Logger:         logger,
	})

	logger.Info("starting", "backend", backend)
	if err := web.Serve(viper.GetInt("port"), reg, logger); err != nil {
		logger.Fatal("server stopped", "error", err)
	}
}

func runRooms(cmd *cobra.Command, args []string) {
	url := fmt.Sprintf("http://localhost:%d/api/rooms", viper.GetInt("port"))
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		logger.Fatal("fetch rooms", "error", err)
	}
	defer resp.Body.Close()

	var infos []room.Info
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		logger.Fatal("decode rooms", "error", err)
	}

	if len(infos) == 0 {
		fmt.Println("No rooms found.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "State", "Participants", "Created At", "Transcripts"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, info := range infos {
		table.Append([]string{
			info.ID,
			info.State,
			fmt.Sprintf("%d", info.Participants),
			info.CreatedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", info.Transcripts),
		})
	}

	table.Render()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
