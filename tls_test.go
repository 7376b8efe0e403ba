package authdigest

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hasura/goenvconf"
	"github.com/relychan/goutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLS(t *testing.T) {
	server := createMockTLSServer(t)
	defer server.Close()

	certPem := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: server.Certificate().Raw,
	})

	t.Setenv("TLS_ROOT_CA_PEM", base64.StdEncoding.EncodeToString(certPem))
	t.Setenv("TLS_INSECURE", "true")

	testCases := []struct {
		Endpoint   string
		ConfigPath string
	}{
		{
			Endpoint:   "/auth/hello",
			ConfigPath: "testdata/rootCA.json",
		},
		{
			Endpoint:   "/auth/hello",
			ConfigPath: "testdata/insecureTLS.json",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.ConfigPath, func(t *testing.T) {
			config, err := goutils.ReadJSONOrYAMLFile[RestyConfig](tc.ConfigPath)
			require.NoError(t, err)
			require.NoError(t, config.Validate())

			client, err := NewDigestClientFromConfig(*config)
			require.NoError(t, err)

			defer func() {
				_ = client.Close()
			}()

			result, err := client.Do(context.Background(), server.URL+tc.Endpoint, tc.Endpoint)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, result.StatusCode)
		})
	}
}

func TestTLSUnknownAuthority(t *testing.T) {
	server := createMockTLSServer(t)
	defer server.Close()

	config, err := goutils.ReadJSONOrYAMLFile[RestyConfig]("testdata/digest.json")
	require.NoError(t, err)

	t.Setenv("DIGEST_USERNAME", "Mufasa")
	t.Setenv("DIGEST_PASSWORD", "Circle Of Life")

	config.TLS = &TLSConfig{}

	client, err := NewDigestClientFromConfig(*config)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	result, err := client.Do(context.Background(), server.URL+"/auth/hello", "/auth/hello")
	require.ErrorIs(t, err, ErrTransport)
	assert.Nil(t, result)
}

func TestTLSConfigVersions(t *testing.T) {
	testCases := []struct {
		Name        string
		Config      TLSConfig
		ExpectedMin uint16
		ExpectedMax uint16
		Error       error
	}{
		{
			Name:        "default",
			ExpectedMin: tls.VersionTLS12,
			ExpectedMax: defaultMaxTLSVersion,
		},
		{
			Name: "explicit",
			Config: TLSConfig{
				MinVersion: "1.2",
				MaxVersion: "1.3",
			},
			ExpectedMin: tls.VersionTLS12,
			ExpectedMax: tls.VersionTLS13,
		},
		{
			Name: "min_greater_than_max",
			Config: TLSConfig{
				MinVersion: "1.3",
				MaxVersion: "1.2",
			},
			ExpectedMin: tls.VersionTLS13,
			ExpectedMax: tls.VersionTLS12,
			Error:       errTLSMinVersionGreaterThanMaxVersion,
		},
		{
			Name: "unsupported_max",
			Config: TLSConfig{
				MaxVersion: "2.0",
			},
			ExpectedMin: tls.VersionTLS12,
			Error:       errUnsupportedTLSVersion,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			minVersion, err := tc.Config.GetMinVersion()
			require.NoError(t, err)
			assert.Equal(t, tc.ExpectedMin, minVersion)

			maxVersion, maxErr := tc.Config.GetMaxVersion()
			if maxErr == nil {
				assert.Equal(t, tc.ExpectedMax, maxVersion)
			}

			err = tc.Config.Validate()
			if tc.Error == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.Error)
			}
		})
	}
}

func TestTLSConfigValidate(t *testing.T) {
	t.Run("cipher_suites", func(t *testing.T) {
		config := TLSConfig{
			CipherSuites: []string{"TLS_AES_128_GCM_SHA256", "TLS_UNKNOWN"},
		}

		err := config.Validate()
		require.ErrorIs(t, err, errUnsupportedCipherSuite)
		assert.Contains(t, err.Error(), "TLS_UNKNOWN")
	})

	t.Run("either_file_or_pem", func(t *testing.T) {
		certFile := goenvconf.NewEnvStringValue("client.crt")
		certPem := goenvconf.NewEnvStringValue("Y2VydA==")

		config := TLSConfig{
			Certificates: []TLSClientCertificate{
				{
					CertFile: &certFile,
					CertPem:  &certPem,
				},
			},
		}

		err := config.Validate()
		require.ErrorIs(t, err, errCertificateRequireEitherFileOrPEM)
		assert.Contains(t, err.Error(), "certificates[0]")
	})
}

func TestLoadCertificateString(t *testing.T) {
	certData, err := loadCertificateString(goenvconf.NewEnvStringValue("Y2VydA=="))
	require.NoError(t, err)
	assert.Equal(t, "cert", string(certData))

	certData, err = loadCertificateString(goenvconf.NewEnvStringValue(""))
	require.NoError(t, err)
	assert.Nil(t, certData)

	_, err = loadCertificateString(goenvconf.NewEnvStringValue("not base64!"))
	require.ErrorIs(t, err, errCertificateInvalidBase64)

	_, err = loadEitherCertPemOrFile(nil, nil)
	require.ErrorIs(t, err, errTLSPEMAndFileEmpty)
}

func createMockTLSServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/auth/hello", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return httptest.NewTLSServer(mux)
}
