package authdigest

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hasura/goenvconf"
	"github.com/prometheus/common/model"
	"resty.dev/v3"
)

var systemCertPool = x509.SystemCertPool

// TLS 1.2 is the lowest version accepted when the min_version is empty.
const defaultMinTLSVersion = tls.VersionTLS12

// Zero lets crypto/tls pick the highest supported version.
const defaultMaxTLSVersion = 0

var tlsVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

var (
	errCertificateRequireEitherFileOrPEM = errors.New(
		"provide either a certificate file or the PEM-encoded string, but not both",
	)
	errCertificateInvalidBase64 = errors.New(
		"certificate string must be in base64 format",
	)
	errTLSMinVersionGreaterThanMaxVersion = errors.New(
		"min_version cannot be greater than max_version",
	)
	errUnsupportedTLSVersion  = errors.New("unsupported TLS version")
	errUnsupportedCipherSuite = errors.New("invalid TLS cipher suite")
	errTLSPEMAndFileEmpty     = errors.New("both PEM and file are empty")
)

// TLSClientCertificate represents a cert and key pair presented to servers that require mutual TLS.
type TLSClientCertificate struct {
	// Path to the TLS cert.
	CertFile *goenvconf.EnvString `json:"cert_file,omitempty" mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	// Alternative to cert_file. Provide the certificate contents as a base64-encoded string instead of a filepath.
	CertPem *goenvconf.EnvString `json:"cert_pem,omitempty" mapstructure:"cert_pem" yaml:"cert_pem,omitempty"`
	// Path to the TLS key.
	KeyFile *goenvconf.EnvString `json:"key_file,omitempty" mapstructure:"key_file" yaml:"key_file,omitempty"`
	// Alternative to key_file. Provide the key contents as a base64-encoded string instead of a filepath.
	KeyPem *goenvconf.EnvString `json:"key_pem,omitempty" mapstructure:"key_pem" yaml:"key_pem,omitempty"`
}

// Validate if the current instance is valid.
func (cert TLSClientCertificate) Validate() error {
	err := validateEitherFileOrPEM(cert.CertFile, cert.CertPem)
	if err != nil {
		return fmt.Errorf("cert: %w", err)
	}

	err = validateEitherFileOrPEM(cert.KeyFile, cert.KeyPem)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}

	return nil
}

// TLSConfig represents the transport layer security (TLS) configuration of the client.
type TLSConfig struct {
	// Interval to reload root certificates. Only takes effect for file-path certificates.
	ReloadInterval *model.Duration `json:"reload_interval,omitempty" jsonschema:"nullable,type=string,pattern=^((([0-9]+h)?([0-9]+m)?([0-9]+s))|(([0-9]+h)?([0-9]+m))|([0-9]+h))$" mapstructure:"reload_interval" yaml:"reload_interval"`
	// Paths to the root certificates that verify the server certificate.
	// If empty uses system root CA.
	RootCAFile []goenvconf.EnvString `json:"root_ca_file,omitempty" mapstructure:"root_ca_file" yaml:"root_ca_file,omitempty"`
	// Alternative to root_ca_file. Provide the CA cert contents as a base64-encoded string instead of a filepath.
	RootCAPem []goenvconf.EnvString `json:"root_ca_pem,omitempty" mapstructure:"root_ca_pem" yaml:"root_ca_pem,omitempty"`
	// List of client certificates.
	Certificates []TLSClientCertificate `json:"certificates,omitempty" mapstructure:"certificates" yaml:"certificates,omitempty"`
	// Skip verifying the server's certificate chain.
	InsecureSkipVerify *goenvconf.EnvBool `json:"insecure_skip_verify,omitempty" mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"`
	// Whether to load the system certificate authorities pool alongside the root certificates.
	IncludeSystemCACertsPool *goenvconf.EnvBool `json:"include_system_ca_certs_pool,omitempty" mapstructure:"include_system_ca_certs_pool" yaml:"include_system_ca_certs_pool,omitempty"`
	// Minimum acceptable TLS version.
	MinVersion string `json:"min_version,omitempty" jsonschema:"enum=1.0,enum=1.1,enum=1.2,enum=1.3" mapstructure:"min_version" yaml:"min_version,omitempty"`
	// Maximum acceptable TLS version.
	MaxVersion string `json:"max_version,omitempty" jsonschema:"enum=1.0,enum=1.1,enum=1.2,enum=1.3" mapstructure:"max_version" yaml:"max_version,omitempty"`
	// Explicit cipher suites can be set. If left blank, a safe default list is used.
	// See https://go.dev/src/crypto/tls/cipher_suites.go for a list of supported cipher suites.
	CipherSuites []string `json:"cipher_suites,omitempty" mapstructure:"cipher_suites" yaml:"cipher_suites,omitempty"`
	// ServerName requested by client for virtual hosting.
	ServerName *goenvconf.EnvString `json:"server_name,omitempty" mapstructure:"server_name" yaml:"server_name,omitempty"`
}

// Validate if the current instance is valid.
func (tc TLSConfig) Validate() error {
	minTLS, err := tc.GetMinVersion()
	if err != nil {
		return fmt.Errorf("min_version: %w", err)
	}

	maxTLS, err := tc.GetMaxVersion()
	if err != nil {
		return fmt.Errorf("max_version: %w", err)
	}

	if maxTLS != defaultMaxTLSVersion && maxTLS < minTLS {
		return errTLSMinVersionGreaterThanMaxVersion
	}

	_, err = convertCipherSuites(tc.CipherSuites)
	if err != nil {
		return fmt.Errorf("cipher_suites: %w", err)
	}

	for i, cert := range tc.Certificates {
		if err := cert.Validate(); err != nil {
			return fmt.Errorf("certificates[%d]: %w", i, err)
		}
	}

	if tc.IncludeSystemCACertsPool != nil {
		_, err := tc.IncludeSystemCACertsPool.GetOrDefault(false)
		if err != nil {
			return fmt.Errorf("include_system_ca_certs_pool: %w", err)
		}
	}

	if tc.ServerName != nil {
		_, err := tc.ServerName.GetOrDefault("")
		if err != nil {
			return fmt.Errorf("server_name: %w", err)
		}
	}

	return nil
}

// GetMinVersion parses the min TLS version from string.
func (tc TLSConfig) GetMinVersion() (uint16, error) {
	return convertTLSVersion(tc.MinVersion, defaultMinTLSVersion)
}

// GetMaxVersion parses the max TLS version from string.
func (tc TLSConfig) GetMaxVersion() (uint16, error) {
	return convertTLSVersion(tc.MaxVersion, defaultMaxTLSVersion)
}

func (tc TLSConfig) toCertWatcherOptions() *resty.CertWatcherOptions {
	result := &resty.CertWatcherOptions{}

	if tc.ReloadInterval != nil {
		result.PoolInterval = time.Duration(*tc.ReloadInterval)
	}

	return result
}

func convertTLSVersion(v string, defaultVersion uint16) (uint16, error) {
	if v == "" {
		return defaultVersion, nil
	}

	val, ok := tlsVersions[v]
	if !ok {
		return 0, fmt.Errorf("%w: %q", errUnsupportedTLSVersion, v)
	}

	return val, nil
}

func validateEitherFileOrPEM(fileEnv, pemEnv *goenvconf.EnvString) error {
	if fileEnv == nil || pemEnv == nil {
		return nil
	}

	file, err := fileEnv.GetOrDefault("")
	if err != nil {
		return fmt.Errorf("file: %w", err)
	}

	pem, err := pemEnv.GetOrDefault("")
	if err != nil {
		return fmt.Errorf("pem: %w", err)
	}

	if file != "" && pem != "" {
		return errCertificateRequireEitherFileOrPEM
	}

	return nil
}

// loadTLSConfig creates the tls.Config of the transport.
// Root certificates from PEM strings and files are added to the resty client later by addTLSCertificates.
func loadTLSConfig(tlsConfig *TLSConfig) (*tls.Config, error) {
	var (
		insecureSkipVerify bool
		serverName         string
		err                error
	)

	if tlsConfig.InsecureSkipVerify != nil {
		insecureSkipVerify, err = tlsConfig.InsecureSkipVerify.GetOrDefault(false)
		if err != nil {
			return nil, fmt.Errorf("failed to parse insecure_skip_verify: %w", err)
		}
	}

	certPool, err := loadSystemCACertPool(tlsConfig)
	if err != nil {
		return nil, err
	}

	minTLS, err := tlsConfig.GetMinVersion()
	if err != nil {
		return nil, fmt.Errorf("min_version: %w", err)
	}

	maxTLS, err := tlsConfig.GetMaxVersion()
	if err != nil {
		return nil, fmt.Errorf("max_version: %w", err)
	}

	cipherSuites, err := convertCipherSuites(tlsConfig.CipherSuites)
	if err != nil {
		return nil, err
	}

	if tlsConfig.ServerName != nil {
		serverName, err = tlsConfig.ServerName.GetOrDefault("")
		if err != nil {
			return nil, fmt.Errorf("failed to get TLS server name: %w", err)
		}
	}

	return &tls.Config{
		RootCAs:            certPool,
		MinVersion:         minTLS,
		MaxVersion:         maxTLS,
		CipherSuites:       cipherSuites,
		ServerName:         serverName,
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec
	}, nil
}

func loadSystemCACertPool(tlsConfig *TLSConfig) (*x509.CertPool, error) {
	if tlsConfig.IncludeSystemCACertsPool == nil {
		return x509.NewCertPool(), nil
	}

	includeSystemCACertsPool, err := tlsConfig.IncludeSystemCACertsPool.GetOrDefault(false)
	if err != nil {
		return nil, fmt.Errorf("invalid include_system_ca_certs_pool config: %w", err)
	}

	if !includeSystemCACertsPool {
		return x509.NewCertPool(), nil
	}

	pool, err := systemCertPool()
	if err != nil {
		return nil, err
	}

	if pool == nil {
		return x509.NewCertPool(), nil
	}

	return pool, nil
}

func convertCipherSuites(cipherSuites []string) ([]uint16, error) {
	var (
		result []uint16
		errs   []error
	)

	supportedSuites := map[string]uint16{}

	for _, supported := range tls.CipherSuites() {
		supportedSuites[supported.Name] = supported.ID
	}

	for _, suite := range cipherSuites {
		id, ok := supportedSuites[suite]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", errUnsupportedCipherSuite, suite))

			continue
		}

		result = append(result, id)
	}

	return result, errors.Join(errs...)
}

func addTLSCertificates(client *resty.Client, tlsConf *TLSConfig) error {
	err := addTLSRootCertificates(client, tlsConf)
	if err != nil {
		return err
	}

	certificates := make([]tls.Certificate, 0, len(tlsConf.Certificates))

	for i, cert := range tlsConf.Certificates {
		c, err := loadClientCertificateKeyPair(cert)
		if err != nil {
			return fmt.Errorf("failed to load client certificate at %d: %w", i, err)
		}

		certificates = append(certificates, *c)
	}

	if len(certificates) > 0 {
		client.SetCertificates(certificates...)
	}

	return nil
}

func addTLSRootCertificates(client *resty.Client, tlsConf *TLSConfig) error {
	for i, certStrEnv := range tlsConf.RootCAPem {
		certStr, err := loadCertificateString(certStrEnv)
		if err != nil {
			return fmt.Errorf("failed to load root certificate string at %d: %w", i, err)
		}

		if len(certStr) == 0 {
			slog.Warn(fmt.Sprintf("the root certificate string at %d is empty", i))

			continue
		}

		client.SetRootCertificateFromString(string(certStr))
	}

	certFilePaths := make([]string, 0, len(tlsConf.RootCAFile))

	for i, certEnv := range tlsConf.RootCAFile {
		certFile, err := certEnv.GetOrDefault("")
		if err != nil {
			return fmt.Errorf("failed to load root certificate file at %d: %w", i, err)
		}

		if certFile == "" {
			slog.Warn(fmt.Sprintf("the root certificate file path at %d is empty", i))

			continue
		}

		certFilePaths = append(certFilePaths, certFile)
	}

	if len(certFilePaths) > 0 {
		client.SetRootCertificatesWatcher(tlsConf.toCertWatcherOptions(), certFilePaths...)
	}

	return nil
}

func loadCertificateString(certEnv goenvconf.EnvString) ([]byte, error) {
	certBase64, err := certEnv.GetOrDefault("")
	if err != nil {
		return nil, err
	}

	if certBase64 == "" {
		return nil, nil
	}

	certStr, err := base64.StdEncoding.DecodeString(certBase64)
	if err != nil {
		return nil, errCertificateInvalidBase64
	}

	return certStr, nil
}

func loadClientCertificateKeyPair(cert TLSClientCertificate) (*tls.Certificate, error) {
	certData, err := loadEitherCertPemOrFile(cert.CertPem, cert.CertFile)
	if err != nil {
		return nil, fmt.Errorf("certificate error: %w", err)
	}

	keyData, err := loadEitherCertPemOrFile(cert.KeyPem, cert.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("key error: %w", err)
	}

	certificate, err := tls.X509KeyPair(certData, keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS cert and key PEMs: %w", err)
	}

	return &certificate, nil
}

func loadEitherCertPemOrFile(pemEnv, fileEnv *goenvconf.EnvString) ([]byte, error) {
	if pemEnv != nil {
		certData, err := loadCertificateString(*pemEnv)
		if err != nil {
			return nil, fmt.Errorf("failed to load PEM: %w", err)
		}

		if len(certData) > 0 {
			return certData, nil
		}
	}

	if fileEnv == nil {
		return nil, errTLSPEMAndFileEmpty
	}

	certFile, err := fileEnv.GetOrDefault("")
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	if certFile == "" {
		return nil, errTLSPEMAndFileEmpty
	}

	certData, err := os.ReadFile(filepath.Clean(certFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	return certData, nil
}
