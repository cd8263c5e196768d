package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nao1215/fsnd/pkg/authz"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "アクセストークンを発行・取得する",
	}
	cmd.AddCommand(newTokenSignCmd())
	cmd.AddCommand(newTokenFetchCmd())
	return cmd
}

// newTokenSignCmd は共有鍵でHS256トークンに署名するコマンドを生成する。
func newTokenSignCmd() *cobra.Command {
	var (
		secret   string
		tok      authz.TokenOptions
		audience string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "共有鍵で開発用トークンに署名する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("FSND_AUTH_SECRET")
			}
			if secret == "" {
				return errors.New("--secret または FSND_AUTH_SECRET を指定してください")
			}
			if audience != "" {
				tok.Audience = []string{audience}
			}
			token, err := authz.Sign([]byte(secret), tok)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HS256の共有鍵（未指定時は FSND_AUTH_SECRET）")
	cmd.Flags().StringVar(&tok.Subject, "subject", "fsndctl", "トークンの主体")
	cmd.Flags().StringVar(&tok.Issuer, "issuer", "", "発行者")
	cmd.Flags().StringVar(&audience, "audience", "", "対象者")
	cmd.Flags().StringSliceVar(&tok.Scopes, "scope", nil, "付与するスコープ（例: get:actors,post:actors）")
	cmd.Flags().DurationVar(&tok.TTL, "ttl", time.Hour, "有効期間")
	return cmd
}

// newTokenFetchCmd はクライアントクレデンシャルフローでIdPからトークンを取得するコマンドを生成する。
func newTokenFetchCmd() *cobra.Command {
	var (
		conf     clientcredentials.Config
		audience string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "クライアントクレデンシャルでIdPからトークンを取得する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if conf.TokenURL == "" || conf.ClientID == "" {
				return errors.New("--token-url と --client-id を指定してください")
			}
			if conf.ClientSecret == "" {
				conf.ClientSecret = os.Getenv("FSND_CLIENT_SECRET")
			}
			if audience != "" {
				conf.EndpointParams = map[string][]string{"audience": {audience}}
			}
			token, err := conf.Token(cmd.Context())
			if err != nil {
				return fmt.Errorf("トークンの取得に失敗: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&conf.TokenURL, "token-url", "", "IdPのトークンエンドポイント")
	cmd.Flags().StringVar(&conf.ClientID, "client-id", "", "クライアントID")
	cmd.Flags().StringVar(&conf.ClientSecret, "client-secret", "", "クライアントシークレット（未指定時は FSND_CLIENT_SECRET）")
	cmd.Flags().StringVar(&audience, "audience", "", "要求するAPIの識別子")
	cmd.Flags().StringSliceVar(&conf.Scopes, "scope", nil, "要求するスコープ")
	return cmd
}
