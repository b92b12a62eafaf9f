package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	Redirect  bool   // seguir al líder si el nodo es follower
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Redirect {
		req.Header.Set("X-Leader-Redirect", "1")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(strings.TrimSpace(string(body)))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

// check convierte respuestas no-2xx en error con el mensaje del API.
func check(op string, status int, body []byte) error {
	if status/100 == 2 {
		return nil
	}
	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && e.Code != "" {
		if e.Detail != "" {
			return fmt.Errorf("%s: %s (%s): %s", op, e.Message, e.Code, e.Detail)
		}
		return fmt.Errorf("%s: %s (%s)", op, e.Message, e.Code)
	}
	return fmt.Errorf("%s fallo: status=%d body=%s", op, status, string(body))
}

func main() {
	var (
		baseURL  = envOr("POLICYREG_URL", "http://localhost:8080")
		out      = envOr("POLICYREG_OUT", "text")
		redirect bool
		timeout  = 60 * time.Second
		cl       = &client{}
	)

	root := &cobra.Command{
		Use:          "policyctl",
		Short:        "CLI para el registro de policies",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := url.ParseRequestURI(baseURL); err != nil {
				return fmt.Errorf("--url inválida: %w", err)
			}
			*cl = client{BaseURL: baseURL, OutFormat: out, Redirect: redirect, HTTP: &http.Client{Timeout: timeout}}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del nodo (env POLICYREG_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")
	root.PersistentFlags().BoolVar(&redirect, "follow-leader", false, "Pedir redirect al líder en escrituras")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Timeout HTTP (debe superar el ack timeout del cluster)")

	getCmd := &cobra.Command{
		Use:   "get [name]",
		Short: "Lista todas las policies o devuelve una por nombre",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/policies"
			if len(args) == 1 {
				path += "/" + url.PathEscape(args[0])
			}
			status, body, err := cl.do(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if err := check("get", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	var putFile string
	putCmd := &cobra.Command{
		Use:   "put <name>",
		Short: "Crea una policy; la definición se lee de --file (o - para stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if putFile == "" {
				return fmt.Errorf("--file es requerido")
			}
			var (
				def []byte
				err error
			)
			if putFile == "-" {
				def, err = io.ReadAll(cmd.InOrStdin())
			} else {
				def, err = os.ReadFile(putFile)
			}
			if err != nil {
				return err
			}
			status, body, err := cl.do(http.MethodPut, "/v1/policies/"+url.PathEscape(args[0]), def)
			if err != nil {
				return err
			}
			if err := check("put", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "Archivo JSON con la definición")

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Borra una policy (espera el ack del cluster)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do(http.MethodDelete, "/v1/policies/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			if err := check("delete", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	clusterCmd := &cobra.Command{Use: "cluster", Short: "Operaciones de membresía"}
	membersCmd := &cobra.Command{
		Use:   "members",
		Short: "Lista miembros y líder",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do(http.MethodGet, "/internal/v1/cluster/members", nil)
			if err != nil {
				return err
			}
			if err := check("members", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	var joinID, joinAddr string
	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Agrega un votante Raft (en el líder)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if joinID == "" || joinAddr == "" {
				return fmt.Errorf("--id y --addr son requeridos")
			}
			b, _ := json.Marshal(map[string]string{"id": joinID, "addr": joinAddr})
			status, body, err := cl.do(http.MethodPost, "/internal/v1/cluster/members", b)
			if err != nil {
				return err
			}
			if err := check("join", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	joinCmd.Flags().StringVar(&joinID, "id", "", "Node ID")
	joinCmd.Flags().StringVar(&joinAddr, "addr", "", "Dirección Raft host:port")
	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remueve un miembro Raft (en el líder)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do(http.MethodDelete, "/internal/v1/cluster/members/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			if err := check("remove", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	clusterCmd.AddCommand(membersCmd, joinCmd, removeCmd)

	root.AddCommand(getCmd, putCmd, deleteCmd, clusterCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
